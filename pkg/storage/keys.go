package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// FolderAudio is the object prefix for raw audio recordings.
	FolderAudio = "audio"
	// TranscriptSubfolder is the sub-prefix for transcript documents,
	// nested under the audio folder.
	TranscriptSubfolder = "transcriptions"
	// AudioExt is the file extension for recorded audio objects.
	AudioExt = ".webm"
	// TranscriptExt is the file extension for transcript documents.
	TranscriptExt = ".json"
	// AudioContentType is the MIME type recordings are stored with.
	AudioContentType = "audio/webm"
	// TranscriptContentType is the MIME type transcript documents are stored with.
	TranscriptContentType = "application/json"
)

// stampLayout renders an instant the way it is embedded in keys, before the
// ':' and '.' separators are replaced with '-'.
const stampLayout = "2006-01-02T15:04:05.000Z"

var (
	stampReplacer = strings.NewReplacer(":", "-", ".", "-")
	stampPattern  = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})T(\d{2})-(\d{2})-(\d{2})-(\d{3})Z`)
)

// AssignKey returns a fresh, globally unique object key for a recording:
// {folder}/{timestamp}-{8 random hex chars}{ext}. The timestamp is UTC
// ISO-8601 with ':' and '.' replaced by '-' so the key is a valid filename.
func AssignKey(folder, ext string) string {
	stamp := stampReplacer.Replace(time.Now().UTC().Format(stampLayout))
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return path.Join(folder, stamp+"-"+suffix+ext)
}

// ParseTimestamp extracts the creation instant embedded in a key. It is
// total: a key without a recognizable timestamp yields the current time
// rather than an error, since the key itself remains the source of identity.
func ParseTimestamp(key string) time.Time {
	m := stampPattern.FindStringSubmatch(key)
	if m == nil {
		return time.Now().UTC()
	}
	iso := fmt.Sprintf("%sT%s:%s:%s.%sZ", m[1], m[2], m[3], m[4], m[5])
	t, err := time.Parse(stampLayout, iso)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

// Stem returns the filename of a key without its folder or extension. Raw
// audio objects and their transcripts share a stem; that shared stem is the
// only correlation between the two.
func Stem(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

// TranscriptKeyFor maps a raw audio key to the key its transcript document
// is stored under: {folder}/transcriptions/{stem}.json.
func TranscriptKeyFor(rawKey string) string {
	return path.Join(path.Dir(rawKey), TranscriptSubfolder, Stem(rawKey)+TranscriptExt)
}

// IsTranscriptKey reports whether a key lives under a transcript subfolder.
func IsTranscriptKey(key string) bool {
	return strings.HasPrefix(key, TranscriptSubfolder+"/") ||
		strings.Contains(key, "/"+TranscriptSubfolder+"/")
}
