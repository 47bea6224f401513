package summary

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/eternnoir/elderlisten/pkg/logger"
)

// MaxChars is the character budget of the merged text handed to the summarizer
const MaxChars = 30000

const separator = "\n\n"

// FragmentLister lists the transcript fragments of one subject-day in name order
type FragmentLister interface {
	ListFragments(subjectID int64, date string) ([]string, error)
}

// Aggregate merges a subject-day's fragments, newest first, until the next
// one would exceed MaxChars, then joins the kept ones in chronological order.
// count is the number of fragments merged; zero means there was nothing to read.
func Aggregate(fragments FragmentLister, subjectID int64, date string) (text string, count int, err error) {
	log := logger.WithComponent("summary").WithFields(map[string]interface{}{
		"subject_id": subjectID,
		"date":       date,
	})
	return aggregate(fragments, subjectID, date, log)
}

func aggregate(fragments FragmentLister, subjectID int64, date string, log *logger.Logger) (string, int, error) {
	paths, err := fragments.ListFragments(subjectID, date)
	if err != nil {
		return "", 0, err
	}
	text, count := mergeTail(paths, MaxChars, log)
	return text, count, nil
}

func mergeTail(paths []string, budget int, log *logger.Logger) (string, int) {
	var kept []string
	total := 0
	sepLen := utf8.RuneCountInString(separator)

	for i := len(paths) - 1; i >= 0; i-- {
		data, err := os.ReadFile(paths[i])
		if err != nil {
			log.Warn().Err(err).Str("file", paths[i]).Msg("Skipping unreadable fragment")
			continue
		}

		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}

		n := utf8.RuneCountInString(content)
		if total+n+sepLen > budget {
			log.Debug().
				Str("file", paths[i]).
				Int("chars", n).
				Int("merged_chars", total).
				Msg("Character budget reached, dropping older fragments")
			break
		}

		kept = append(kept, content)
		total += n + sepLen
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	return strings.Join(kept, separator), len(kept)
}
