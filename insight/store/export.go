package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
	"github.com/theimaginaryfoundation/ask-scriptures/insight/fileutils"
)

// ExportOptions controls how journal shards are created.
type ExportOptions struct {
	OutDir    string
	MaxBytes  int // default ~100KB
	Overwrite bool

	// IncludeAnalytics adds sentiment, topics and points under each user message.
	IncludeAnalytics bool
}

// ExportIndexRecord maps one session to a markdown shard file and anchor.
type ExportIndexRecord struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	CreatedAtISO string `json:"created_at_iso8601,omitempty"`

	ShardFile string `json:"shard_file"`
	Anchor    string `json:"anchor"`

	Messages          int                    `json:"messages"`
	FirstQuestion     string                 `json:"first_question,omitempty"`
	DominantSentiment insight.SentimentLabel `json:"dominant_sentiment"`
	Topics            []insight.Topic        `json:"topics,omitempty"`
	VerseReferences   []string               `json:"verse_references,omitempty"`
}

// WriteSessionShards renders sessions as a markdown journal packed into shard files of roughly
// MaxBytes (UTF-8 bytes). Sessions are written oldest first.
func WriteSessionShards(sessions []*ChatSession, opts ExportOptions) ([]ExportIndexRecord, error) {
	if opts.OutDir == "" {
		return nil, errors.New("WriteSessionShards: OutDir is empty")
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 100 * 1024
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("WriteSessionShards: mkdir OutDir: %w", err)
	}

	ordered := append([]*ChatSession(nil), sessions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	var (
		shardNum     = 1
		curr         strings.Builder
		currBytes    = 0
		currFilename = ""
		index        []ExportIndexRecord
	)

	flush := func() error {
		if currBytes == 0 {
			return nil
		}
		outPath := filepath.Join(opts.OutDir, currFilename)
		if !opts.Overwrite && fileutils.FileExists(outPath) {
			return fmt.Errorf("WriteSessionShards: shard exists: %s", outPath)
		}
		if err := fileutils.WriteFileAtomicSameDir(outPath, []byte(curr.String()), 0o644); err != nil {
			return fmt.Errorf("WriteSessionShards: write shard: %w", err)
		}
		shardNum++
		curr.Reset()
		currBytes = 0
		currFilename = ""
		return nil
	}

	for _, cs := range ordered {
		if cs == nil || cs.ID == "" || len(cs.Messages) == 0 {
			continue
		}
		section, anchor := renderSessionMarkdown(cs, opts.IncludeAnalytics)
		sectionBytes := len(section)

		if currBytes > 0 && currBytes+sectionBytes > opts.MaxBytes {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		if currBytes == 0 {
			currFilename = shardName(shardNum)
			header := fmt.Sprintf("# Journal %04d\n\n", shardNum)
			curr.WriteString(header)
			currBytes += len(header)
		}

		curr.WriteString(section)
		currBytes += sectionBytes

		qs := cs.UserQuestions(len(cs.Messages))
		first := ""
		if len(qs) > 0 {
			first = fileutils.Truncate(fileutils.SingleLine(qs[0]), 200)
		}
		index = append(index, ExportIndexRecord{
			SessionID:         cs.ID,
			Title:             cs.Title,
			CreatedAtISO:      isoTime(cs.CreatedAt),
			ShardFile:         currFilename,
			Anchor:            anchor,
			Messages:          len(cs.Messages),
			FirstQuestion:     first,
			DominantSentiment: cs.DominantSentiment(),
			Topics:            append([]insight.Topic(nil), cs.Topics...),
			VerseReferences:   sessionVerses(cs),
		})
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return index, nil
}

func shardName(n int) string {
	return fmt.Sprintf("journal_%04d.md", n)
}

// isoTime formats t as RFC 3339 UTC. The zero time yields "".
func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func sessionVerses(cs *ChatSession) []string {
	var refs []string
	for _, m := range cs.Messages {
		if m.Metadata != nil {
			refs = append(refs, m.Metadata.VerseReferences...)
		}
	}
	return insight.DedupeStrings(refs)
}

func renderSessionMarkdown(cs *ChatSession, includeAnalytics bool) (section string, anchor string) {
	anchor = "session-" + sanitizeAnchor(cs.ID)
	title := escapeMarkdownInline(cs.Title)
	if title == "" {
		title = cs.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<a id=\"%s\"></a>\n", anchor)
	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "- session_id: `%s`\n", cs.ID)
	if iso := isoTime(cs.CreatedAt); iso != "" {
		fmt.Fprintf(&b, "- created_at: `%s`\n", iso)
	}
	if len(cs.Topics) > 0 {
		names := make([]string, 0, len(cs.Topics))
		for _, t := range cs.Topics {
			names = append(names, string(t))
		}
		fmt.Fprintf(&b, "- topics: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "- dominant_sentiment: %s\n", cs.DominantSentiment())
	b.WriteString("\n")

	for _, m := range cs.Messages {
		switch m.Role {
		case insight.RoleUser:
			fmt.Fprintf(&b, "**You:** %s\n\n", strings.TrimSpace(m.Content))
		case insight.RoleAssistant:
			fmt.Fprintf(&b, "**Guide:** %s\n\n", strings.TrimSpace(m.Content))
			if m.Metadata != nil && len(m.Metadata.VerseReferences) > 0 {
				fmt.Fprintf(&b, "_Verses: %s_\n\n", strings.Join(m.Metadata.VerseReferences, ", "))
			}
		}
		if includeAnalytics {
			writeAnalytics(&b, m.Metadata)
		}
	}

	for _, bm := range cs.BreakthroughMoments {
		fmt.Fprintf(&b, "- breakthrough `%s`: %s\n", isoTime(bm.At), escapeMarkdownInline(bm.Description))
	}
	if len(cs.BreakthroughMoments) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	return b.String(), anchor
}

func sanitizeAnchor(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "session"
	}
	var out strings.Builder
	out.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		} else {
			out.WriteByte('-')
		}
	}
	return strings.Trim(out.String(), "-")
}

func escapeMarkdownInline(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}

// WriteExportIndex writes index records as JSONL.
func WriteExportIndex(path string, records []ExportIndexRecord, overwrite bool) error {
	if path == "" {
		return errors.New("WriteExportIndex: path is empty")
	}
	if !overwrite && fileutils.FileExists(path) {
		return fmt.Errorf("WriteExportIndex: file exists: %s", path)
	}

	var b strings.Builder
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return fileutils.WriteFileAtomicSameDir(path, []byte(b.String()), 0o644)
}

// writeAnalytics renders the sentiment line of a message that carries turn analytics.
func writeAnalytics(b *strings.Builder, md *insight.MessageMetadata) {
	if md == nil || md.Sentiment == "" {
		return
	}
	fmt.Fprintf(b, "> sentiment: %s; wisdom points: %d", md.Sentiment, md.WisdomPoints)
	if len(md.Topics) > 0 {
		names := make([]string, 0, len(md.Topics))
		for _, t := range md.Topics {
			names = append(names, string(t))
		}
		fmt.Fprintf(b, "; topics: %s", strings.Join(names, ", "))
	}
	b.WriteString("\n\n")
}
