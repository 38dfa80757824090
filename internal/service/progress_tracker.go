package service

import (
	"sync"
	"time"
)

type UploadState string

const (
	UploadReceiving  UploadState = "RECEIVING"
	UploadProcessing UploadState = "PROCESSING"
	UploadCompleted  UploadState = "COMPLETED"
	UploadFailed     UploadState = "FAILED"
)

// UploadProgress 单个上传任务的进度
type UploadProgress struct {
	JobID         string      `json:"jobId"`
	UserID        string      `json:"userId"`
	State         UploadState `json:"state"`
	BytesReceived int64       `json:"bytesReceived"`
	TotalBytes    int64       `json:"totalBytes"`
	Percent       int         `json:"percent"`
	Message       string      `json:"message,omitempty"`
	RecordingID   string      `json:"recordingId,omitempty"`
	StartedAt     time.Time   `json:"startedAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func (p UploadProgress) Done() bool {
	return p.State == UploadCompleted || p.State == UploadFailed
}

type progressEntry struct {
	mu       sync.Mutex
	progress UploadProgress
}

// ProgressTracker 以 jobId+userId 为键的进度表；map 锁只保护查找，更新在各自的键锁内完成
type ProgressTracker struct {
	mu      sync.Mutex
	entries map[string]*progressEntry
	now     func() time.Time
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		entries: make(map[string]*progressEntry),
		now:     time.Now,
	}
}

func progressKey(jobID, userID string) string {
	return jobID + "\x00" + userID
}

// Start 新建或重置一个任务
func (t *ProgressTracker) Start(jobID, userID string, total int64) UploadProgress {
	now := t.now()
	entry := &progressEntry{progress: UploadProgress{
		JobID:      jobID,
		UserID:     userID,
		State:      UploadReceiving,
		TotalBytes: total,
		StartedAt:  now,
		UpdatedAt:  now,
	}}

	t.mu.Lock()
	t.entries[progressKey(jobID, userID)] = entry
	t.mu.Unlock()
	return entry.progress
}

func (t *ProgressTracker) lookup(jobID, userID string) *progressEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[progressKey(jobID, userID)]
}

// Update 在键锁内修改进度，任务不存在时返回 false
func (t *ProgressTracker) Update(jobID, userID string, fn func(p *UploadProgress)) (UploadProgress, bool) {
	entry := t.lookup(jobID, userID)
	if entry == nil {
		return UploadProgress{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(&entry.progress)
	p := &entry.progress
	if p.TotalBytes > 0 {
		p.Percent = int(p.BytesReceived * 100 / p.TotalBytes)
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	if p.State == UploadCompleted {
		p.Percent = 100
	}
	p.UpdatedAt = t.now()
	return *p, true
}

func (t *ProgressTracker) Add(jobID, userID string, n int64) {
	t.Update(jobID, userID, func(p *UploadProgress) { p.BytesReceived += n })
}

func (t *ProgressTracker) Finish(jobID, userID string, state UploadState, message, recordingID string) {
	t.Update(jobID, userID, func(p *UploadProgress) {
		p.State = state
		p.Message = message
		p.RecordingID = recordingID
	})
}

func (t *ProgressTracker) Get(jobID, userID string) (UploadProgress, bool) {
	entry := t.lookup(jobID, userID)
	if entry == nil {
		return UploadProgress{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.progress, true
}

// Sweep 清理已结束且超过 ttl 的任务，返回清理数量
func (t *ProgressTracker) Sweep(ttl time.Duration) int {
	cutoff := t.now().Add(-ttl)
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, entry := range t.entries {
		entry.mu.Lock()
		stale := entry.progress.Done() && entry.progress.UpdatedAt.Before(cutoff)
		entry.mu.Unlock()
		if stale {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// progressReader 读取时累计字节数
type progressReader struct {
	r       interface{ Read([]byte) (int, error) }
	tracker *ProgressTracker
	jobID   string
	userID  string
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.tracker.Add(pr.jobID, pr.userID, int64(n))
	}
	return n, err
}
