package campaign

import (
	"regexp"

	"github.com/example/sms-campaign/internal/models"
)

// phonePattern accepts a leading + followed by digits only.
var phonePattern = regexp.MustCompile(`^\+[0-9]+$`)

// ValidPhone reports whether the phone string is syntactically eligible for
// dispatch. This is a pure check; it never contacts the provider.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Job is the unit of work submitted to the dispatch pool. Index is the
// recipient's position in the input list so the report can preserve input
// order even though completion order differs.
type Job struct {
	Index     int
	Recipient models.Recipient
	Body      string
}

// Skip records a recipient excluded during filtering together with the
// outcome explaining why.
type Skip struct {
	Index     int
	Recipient models.Recipient
	Outcome   models.SendOutcome
}

// Filter splits the raw recipient list into dispatchable jobs and skipped
// entries using a snapshot of the opt-out set. The returned jobs preserve
// input order and carry no rendered body yet. Duplicate phone numbers are not
// deduplicated: each row is an independent job.
func Filter(recipients []models.Recipient, optOuts *models.OptOutSet) ([]Job, []Skip) {
	jobs := make([]Job, 0, len(recipients))
	var skips []Skip

	for i, r := range recipients {
		switch {
		case !ValidPhone(r.Phone):
			skips = append(skips, Skip{Index: i, Recipient: r, Outcome: models.SendOutcomeSkippedInvalidPhone})
		case optOuts.Contains(r.Phone):
			skips = append(skips, Skip{Index: i, Recipient: r, Outcome: models.SendOutcomeSkippedOptedOut})
		default:
			jobs = append(jobs, Job{Index: i, Recipient: r})
		}
	}

	return jobs, skips
}
