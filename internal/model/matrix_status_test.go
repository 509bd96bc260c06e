package model

import "testing"

func TestMatrixStatus_Editable(t *testing.T) {
	tests := []struct {
		status MatrixStatus
		want   bool
	}{
		{MatrixUndrafted, true},
		{MatrixDrafted, false},
		{MatrixPending, false},
		{MatrixApproved, false},
		{MatrixRejected, true},
		{MatrixInProgress, true},
		{MatrixComplete, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Editable(); got != tt.want {
				t.Fatalf("Editable(%s) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestMatrixStatus_Next(t *testing.T) {
	tests := []struct {
		name   string
		from   MatrixStatus
		ev     MatrixEvent
		want   MatrixStatus
		wantOK bool
	}{
		{"submit undrafted", MatrixUndrafted, EventSubmit, MatrixDrafted, true},
		{"resubmit rejected", MatrixRejected, EventSubmit, MatrixDrafted, true},
		{"submit drafted twice", MatrixDrafted, EventSubmit, MatrixDrafted, false},
		{"submit approved", MatrixApproved, EventSubmit, MatrixApproved, false},
		{"submit complete", MatrixComplete, EventSubmit, MatrixComplete, false},
		{"open review", MatrixDrafted, EventOpenReview, MatrixPending, true},
		{"open review undrafted", MatrixUndrafted, EventOpenReview, MatrixUndrafted, false},
		{"approve pending", MatrixPending, EventApprove, MatrixApproved, true},
		{"approve in progress", MatrixInProgress, EventApprove, MatrixApproved, true},
		{"approve undrafted", MatrixUndrafted, EventApprove, MatrixUndrafted, false},
		{"reject drafted", MatrixDrafted, EventReject, MatrixRejected, true},
		{"reject approved", MatrixApproved, EventReject, MatrixApproved, false},
		{"complete approved", MatrixApproved, EventComplete, MatrixComplete, true},
		{"complete pending", MatrixPending, EventComplete, MatrixPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.from.Next(tt.ev)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Next(%s, %s) = (%s, %v), want (%s, %v)", tt.from, tt.ev, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		statuses []PositionStatus
		want     MatrixStatus
		wantOK   bool
	}{
		{"empty", nil, "", false},
		{"all approved", []PositionStatus{PositionApproved, PositionApproved}, MatrixApproved, true},
		{"one rejected", []PositionStatus{PositionApproved, PositionRejected}, MatrixRejected, true},
		{"rejected wins over pending", []PositionStatus{PositionPending, PositionRejected}, MatrixRejected, true},
		{"one pending", []PositionStatus{PositionApproved, PositionPending}, MatrixInProgress, true},
		{"in progress", []PositionStatus{PositionInProgress}, MatrixInProgress, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Aggregate(tt.statuses)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Aggregate(%v) = (%s, %v), want (%s, %v)", tt.statuses, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMatrixStatus_Valid(t *testing.T) {
	if !MatrixInProgress.Valid() {
		t.Fatal("InProgress should be valid")
	}
	if MatrixStatus("Approve").Valid() {
		t.Fatal("position-level value must not be a department status")
	}
}
