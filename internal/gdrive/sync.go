package gdrive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Mirror copies uploaded transcripts into a Google Drive folder so they
// stay reviewable outside the app.
type Mirror struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewMirror(ctx context.Context, credPath, folderID string) (*Mirror, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Mirror{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

func (m *Mirror) MirrorTranscript(ctx context.Context, fileName, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fileID, ok := m.fileIDs[fileName]; ok {
		_, err := m.service.Files.Update(fileID, &drive.File{}).
			Media(strings.NewReader(content)).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	doc, err := m.service.Files.Create(&drive.File{
		Name:     fileName,
		MimeType: "application/vnd.google-apps.document",
		Parents:  []string{m.folderID},
	}).Media(strings.NewReader(content)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	m.fileIDs[fileName] = doc.Id
	return nil
}
