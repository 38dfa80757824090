package util

const (
	DateFormat  = "2006-01-02"
	TimeFormat  = "2006-01-02 15:04:05"
	MonthFormat = "2006-01"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeVideo       = "video/"
	MimeAudio       = "audio/"
	MimeOctetStream = "application/octet-stream"
	MimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// 候选人答题会话口令头，也可通过请求体传入
const SessionPasswordHeader = "X-Session-Password"

var (
	AllowedRecordingExtensions = []string{".mp4", ".mov", ".webm", ".mkv", ".m4a", ".wav", ".mp3", ".ogg"}
	AllowedRecordingMimeTypes  = []string{MimeVideo, MimeAudio, "application/ogg", MimeOctetStream}
)
