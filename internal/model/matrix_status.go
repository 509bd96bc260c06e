package model

// MatrixStatus is the department-level lifecycle of a matrix.
type MatrixStatus string

const (
	MatrixUndrafted  MatrixStatus = "Undrafted"
	MatrixDrafted    MatrixStatus = "Drafted"
	MatrixPending    MatrixStatus = "Pending"
	MatrixInProgress MatrixStatus = "InProgress"
	MatrixApproved   MatrixStatus = "Approved"
	MatrixRejected   MatrixStatus = "Rejected"
	MatrixComplete   MatrixStatus = "Complete"
)

// Valid reports whether s is a known department status.
func (s MatrixStatus) Valid() bool {
	switch s {
	case MatrixUndrafted, MatrixDrafted, MatrixPending, MatrixInProgress,
		MatrixApproved, MatrixRejected, MatrixComplete:
		return true
	}
	return false
}

// Editable reports whether the head of department may change the matrix.
// Drafted, Pending and Approved matrices are locked.
func (s MatrixStatus) Editable() bool {
	switch s {
	case MatrixDrafted, MatrixPending, MatrixApproved:
		return false
	}
	return true
}

// Reviewable reports whether the training director may record decisions.
func (s MatrixStatus) Reviewable() bool {
	switch s {
	case MatrixDrafted, MatrixPending, MatrixInProgress:
		return true
	}
	return false
}

// PositionStatus is the review status of one matrix row.
type PositionStatus string

const (
	PositionPending    PositionStatus = "Pending"
	PositionInProgress PositionStatus = "InProgress"
	PositionApproved   PositionStatus = "Approve"
	PositionRejected   PositionStatus = "Reject"
)

// MatrixEvent is a lifecycle trigger applied to a department matrix.
type MatrixEvent string

const (
	EventSubmit     MatrixEvent = "submit"
	EventOpenReview MatrixEvent = "open_review"
	EventApprove    MatrixEvent = "approve"
	EventReject     MatrixEvent = "reject"
	EventComplete   MatrixEvent = "complete"
)

// Next returns the status reached by applying ev to s, or false when the transition is not allowed.
// Position-level decisions go through Aggregate instead.
func (s MatrixStatus) Next(ev MatrixEvent) (MatrixStatus, bool) {
	switch ev {
	case EventSubmit:
		if s.Editable() && s != MatrixComplete {
			return MatrixDrafted, true
		}
	case EventOpenReview:
		if s == MatrixDrafted {
			return MatrixPending, true
		}
	case EventApprove:
		if s.Reviewable() {
			return MatrixApproved, true
		}
	case EventReject:
		if s.Reviewable() {
			return MatrixRejected, true
		}
	case EventComplete:
		if s == MatrixApproved {
			return MatrixComplete, true
		}
	}
	return s, false
}

// Aggregate folds position-level statuses into the department status.
// All approved gives Approved, any rejection gives Rejected, anything else still open gives InProgress.
// An empty slice reports false.
func Aggregate(statuses []PositionStatus) (MatrixStatus, bool) {
	if len(statuses) == 0 {
		return "", false
	}
	approved := 0
	for _, st := range statuses {
		switch st {
		case PositionRejected:
			return MatrixRejected, true
		case PositionApproved:
			approved++
		}
	}
	if approved == len(statuses) {
		return MatrixApproved, true
	}
	return MatrixInProgress, true
}
