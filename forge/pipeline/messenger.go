package pipeline

import "context"

// File references a deliverable artifact on disk. The caption rides
// along on the certificate file, mirroring how the artifacts are
// presented to the requester.
type File struct {
	Name    string
	Path    string
	Caption string
}

// Status is a transient progress notification. Implementations must
// tolerate Update/Delete failing (the notification may already be
// gone) and log instead of returning errors; losing a status update
// never aborts a request.
type Status interface {
	Update(ctx context.Context, text string)
	Delete(ctx context.Context)
}

// Messenger is the delivery collaborator. The pipeline only needs to
// send text, send files and maintain one transient status
// notification per request; the transport behind it is out of scope.
type Messenger interface {
	SendText(ctx context.Context, subject, text string) error
	SendFiles(ctx context.Context, subject string, files []File) error
	BeginStatus(ctx context.Context, subject, text string) Status
}

// NopStatus is a Status that does nothing, for messengers without
// editable notifications.
type NopStatus struct{}

func (NopStatus) Update(ctx context.Context, text string) {}
func (NopStatus) Delete(ctx context.Context)              {}
