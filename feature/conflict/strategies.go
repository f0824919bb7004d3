package conflict

import (
	"fmt"

	"booksync/feature/book"
)

// keepLatest keeps the record extracted most recently. Ties keep the
// local side.
func keepLatest(c Conflict) Resolution {
	winner, side := c.Local, "local"
	if c.Remote.ExtractedAt > c.Local.ExtractedAt {
		winner, side = c.Remote, "remote"
	}
	return Resolution{
		Resolved: true,
		Winner:   winner.Clone(),
		Reason:   fmt.Sprintf("%s record is newer (extractedAt %d)", side, winner.ExtractedAt),
	}
}

// keepHighestProgress keeps the record with the higher reading
// progress. Equal progress falls back to the newer record.
func keepHighestProgress(c Conflict) Resolution {
	lp, rp := c.Local.Progress.Percentage, c.Remote.Progress.Percentage
	if lp == rp {
		res := keepLatest(c)
		res.Reason = "equal progress, " + res.Reason
		return res
	}
	winner, side := c.Local, "local"
	if rp > lp {
		winner, side = c.Remote, "remote"
	}
	return Resolution{
		Resolved: true,
		Winner:   winner.Clone(),
		Reason:   fmt.Sprintf("%s record has higher progress (%d%% vs %d%%)", side, winner.Progress.Percentage, min(lp, rp)),
	}
}

// mergeBestAttributes builds a composite record: highest progress,
// newest timestamp, finished status if either side finished, and any
// field only one side carries.
func mergeBestAttributes(c Conflict) Resolution {
	merged := MergeRecords(c.Local, c.Remote)
	return Resolution{
		Resolved: true,
		Winner:   merged,
		Reason:   "merged best attributes of both records",
	}
}

// manualResolve defers the decision, surfacing both versions.
func manualResolve(c Conflict) Resolution {
	return Resolution{
		Resolved: false,
		Local:    c.Local.Clone(),
		Remote:   c.Remote.Clone(),
		Reason:   "manual review requested",
	}
}

// MergeRecords combines two records of the same book field-wise so no
// side loses data it was the only one to carry. The newer record seeds
// the result.
func MergeRecords(local, remote *book.Record) *book.Record {
	base, other := local, remote
	if remote.ExtractedAt > local.ExtractedAt {
		base, other = remote, local
	}
	merged := base.Clone()

	if other.Progress.Percentage > merged.Progress.Percentage {
		merged.Progress = other.Progress
	}
	if other.ExtractedAt > merged.ExtractedAt {
		merged.ExtractedAt = other.ExtractedAt
	}
	if local.Status == book.StatusFinished || remote.Status == book.StatusFinished {
		merged.Status = book.StatusFinished
		merged.Progress.Percentage = 100
	}
	if merged.ISBN == "" {
		merged.ISBN = other.ISBN
	}
	if merged.Cover == (book.Cover{}) {
		merged.Cover = other.Cover
	}
	if merged.Rating == 0 {
		merged.Rating = other.Rating
	}
	if len(merged.Authors) == 0 {
		merged.Authors = append(book.StringList{}, other.Authors...)
	}
	merged.RecomputeHashes()
	return merged
}
