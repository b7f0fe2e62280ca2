package file

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// UploadedEvent is published once per confirmed blob write. The thumbnail
// pipeline is its only consumer; communication happens solely through this
// event and the eventual thumbnail_path write.
type UploadedEvent struct {
	FileID      string `json:"file_id"`
	ObjectName  string `json:"object_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// NATSPublisher emits upload events on the configured subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher constructs a publisher.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

// PublishUploaded fires the event. Delivery is best-effort; the caller logs
// failures and never fails the upload over them.
func (p *NATSPublisher) PublishUploaded(ev UploadedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal uploaded event: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish uploaded event: %w", err)
	}
	return nil
}
