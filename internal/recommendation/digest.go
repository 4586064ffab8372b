package recommendation

import (
	"fmt"
	"strings"
)

const dateLayout = "2006-01-02"

// DietDigest renders one "- <foods> (<kcal> kcal)" line per entry.
func DietDigest(entries []Entry) string {
	return render(entries, func(e Entry) string {
		return fmt.Sprintf("- %s (%d kcal)", e.Title, e.Kcal)
	})
}

// ExerciseDigest renders one "- <type>: <feedback>" line per entry.
func ExerciseDigest(entries []Entry) string {
	return render(entries, func(e Entry) string {
		return fmt.Sprintf("- %s: %s", e.Title, e.Detail)
	})
}

// DatedDietDigest is DietDigest with the UTC date of each entry, for plan evaluation.
func DatedDietDigest(entries []Entry) string {
	return render(entries, func(e Entry) string {
		return fmt.Sprintf("- %s: %s (%d kcal)", e.LoggedAt.UTC().Format(dateLayout), e.Title, e.Kcal)
	})
}

// DatedExerciseDigest renders "- <date>: <type> - <feedback>" lines.
func DatedExerciseDigest(entries []Entry) string {
	return render(entries, func(e Entry) string {
		return fmt.Sprintf("- %s: %s - %s", e.LoggedAt.UTC().Format(dateLayout), e.Title, e.Detail)
	})
}

func render(entries []Entry, line func(Entry) string) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, line(e))
	}
	return strings.Join(lines, "\n")
}
