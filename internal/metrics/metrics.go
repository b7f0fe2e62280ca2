package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts successfully completed uploads.
	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quicksend_uploads_total",
		Help: "Number of files uploaded.",
	})

	// UploadedBytes totals the size of successfully uploaded files.
	UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quicksend_uploaded_bytes_total",
		Help: "Bytes of file content uploaded.",
	})

	// DownloadsTotal counts authorized downloads, including signed URLs.
	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quicksend_downloads_total",
		Help: "Number of downloads authorized.",
	})

	// SweepsTotal counts retention sweep runs.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quicksend_sweeps_total",
		Help: "Number of retention sweeps executed.",
	})

	// ReclaimedTotal counts records reclaimed by the sweeper.
	ReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quicksend_reclaimed_files_total",
		Help: "Number of expired or exhausted files reclaimed.",
	})

	// ThumbnailsTotal counts generated thumbnails.
	ThumbnailsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quicksend_thumbnails_total",
		Help: "Number of thumbnails generated.",
	})
)

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
