package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// maxSnapshotBytes caps the archived body read, mirroring the crawl fetcher
// byte cap at its default.
const maxSnapshotBytes = 10 << 20

// ArchiveClient resolves archived snapshots through the Wayback availability
// API: one request to locate the closest snapshot, one to download it.
type ArchiveClient struct {
	config common.ArchiveAdapterConfig
	client *http.Client
	logger arbor.ILogger
}

// NewArchiveClient creates the archive adapter.
func NewArchiveClient(config common.ArchiveAdapterConfig, logger arbor.ILogger) *ArchiveClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ArchiveClient{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// availabilityReply is the subset of the Wayback availability response the
// adapter reads.
type availabilityReply struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// GetSnapshot returns the closest archived copy of a page, or
// ErrSnapshotNotFound when the archive has none.
func (a *ArchiveClient) GetSnapshot(ctx context.Context, pageURL string) (*interfaces.Snapshot, error) {
	lookup := fmt.Sprintf("%s?url=%s", a.config.Endpoint, url.QueryEscape(pageURL))

	reply, err := a.lookupClosest(ctx, lookup)
	if err != nil {
		return nil, err
	}

	closest := reply.ArchivedSnapshots.Closest
	if !closest.Available || closest.URL == "" {
		return nil, interfaces.ErrSnapshotNotFound
	}

	body, err := a.download(ctx, closest.URL)
	if err != nil {
		return nil, err
	}

	fetchedAt := parseWaybackTimestamp(closest.Timestamp)

	a.logger.Debug().
		Str("url", pageURL).
		Str("snapshot_url", closest.URL).
		Int("bytes", len(body)).
		Msg("Archived snapshot retrieved")

	return &interfaces.Snapshot{
		SnapshotURL: closest.URL,
		FetchedAt:   fetchedAt,
		Body:        body,
	}, nil
}

func (a *ArchiveClient) lookupClosest(ctx context.Context, lookup string) (*availabilityReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookup, nil)
	if err != nil {
		return nil, fmt.Errorf("build availability request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive availability lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive availability lookup: status %d", resp.StatusCode)
	}

	var reply availabilityReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode availability reply: %w", err)
	}
	return &reply, nil
}

func (a *ArchiveClient) download(ctx context.Context, snapshotURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download snapshot: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}
	return body, nil
}

// parseWaybackTimestamp reads the YYYYMMDDhhmmss snapshot timestamp. A
// malformed value falls back to now rather than failing the snapshot.
func parseWaybackTimestamp(ts string) time.Time {
	if parsed, err := time.Parse("20060102150405", ts); err == nil {
		return parsed.UTC()
	}
	return time.Now().UTC()
}
