package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/keyforge/keyforge/forge/pipeline"
)

func timeNow() time.Time {
	return time.Now().UTC()
}

// consoleMessenger prints pipeline output to stdout; the delivery
// collaborator for one-shot command line runs.
type consoleMessenger struct{}

func (consoleMessenger) SendText(ctx context.Context, subject, text string) error {
	fmt.Println(text)
	return nil
}

func (consoleMessenger) SendFiles(ctx context.Context, subject string, files []pipeline.File) error {
	for _, fi := range files {
		fmt.Printf("wrote %s\n", fi.Path)
		if len(fi.Caption) > 0 {
			fmt.Println()
			fmt.Println(fi.Caption)
		}
	}
	return nil
}

type consoleStatus struct{}

func (consoleStatus) Update(ctx context.Context, text string) {
	fmt.Println(text)
}

func (consoleStatus) Delete(ctx context.Context) {}

func (consoleMessenger) BeginStatus(ctx context.Context, subject, text string) pipeline.Status {
	fmt.Println(text)
	return consoleStatus{}
}
