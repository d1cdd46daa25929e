package conversation

import (
	"fmt"
	"time"

	"github.com/bkvaiude/dataflow-ctl/internal/filter"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Session is the conversation entry point: it owns the cursor store and drives a
// session's utterances through requirement extraction and the fixed
// workflow-step order.
type Session struct {
	cursors *CursorStore
}

// NewSession wraps an already-opened CursorStore.
func NewSession(cursors *CursorStore) *Session {
	return &Session{cursors: cursors}
}

// Start begins a new conversation for (sessionID, userID), extracting
// requirement hints from the opening utterance and placing the cursor at
// the first workflow step.
func (s *Session) Start(sessionID, userID, utterance string) (*models.WorkflowCursor, error) {
	now := time.Now()
	cursor := &models.WorkflowCursor{
		SessionID:       sessionID,
		UserID:          userID,
		OriginalRequest: utterance,
		Hints:           ExtractRequirements(utterance),
		CurrentStep:     models.WorkflowSteps[0],
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.cursors.Save(cursor); err != nil {
		return nil, err
	}
	return cursor, nil
}

// Get loads an existing session's cursor.
func (s *Session) Get(sessionID, userID string) (*models.WorkflowCursor, error) {
	return s.cursors.Get(sessionID, userID)
}

// Refine re-extracts requirement hints from a follow-up utterance, merging
// any newly-found hint over the cursor's existing ones (a later utterance
// refining an earlier hint wins; an utterance that adds no new hint in a
// field leaves the existing one untouched).
func (s *Session) Refine(sessionID, userID, utterance string) (*models.WorkflowCursor, error) {
	cursor, err := s.cursors.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}
	fresh := ExtractRequirements(utterance)
	mergeHints(&cursor.Hints, fresh)
	if err := s.cursors.Save(cursor); err != nil {
		return nil, err
	}
	return cursor, nil
}

func mergeHints(dst *models.RequirementHints, src models.RequirementHints) {
	if src.SourceHint != "" {
		dst.SourceHint = src.SourceHint
	}
	if src.TableHint != "" {
		dst.TableHint = src.TableHint
	}
	if src.FilterRequirement != "" {
		dst.FilterRequirement = src.FilterRequirement
	}
	if src.DestinationHint != "" {
		dst.DestinationHint = src.DestinationHint
	}
	if src.AlertRequirement != "" {
		dst.AlertRequirement = src.AlertRequirement
	}
	if src.AggregationRequirement != "" {
		dst.AggregationRequirement = src.AggregationRequirement
	}
}

// ConfirmFilter turns the cursor's free-text filter requirement hint (set by
// ExtractRequirements during StepDataFilter) into a structured FilterConfig
// via the Filter Planner, scored against the selected table's discovered
// columns, and records it on the cursor. A cursor with no filter requirement
// hint confirms an unfiltered pipeline.
func (s *Session) ConfirmFilter(cursor *models.WorkflowCursor, columns []models.Column, sampleValues map[string][]string) error {
	if cursor.Hints.FilterRequirement == "" {
		cursor.ConfirmedFilter = nil
		return s.cursors.Save(cursor)
	}

	planned, err := filter.Plan(cursor.Hints.FilterRequirement, columns, sampleValues)
	if err != nil {
		return fmt.Errorf("plan filter from %q: %w", cursor.Hints.FilterRequirement, err)
	}

	cursor.ConfirmedFilter = &models.FilterConfig{
		Column:         planned.Column,
		Operator:       planned.Operator,
		Values:         planned.Values,
		SQLWhere:       planned.SQLWhere,
		ExprEquivalent: planned.ExprEquivalent,
		Description:    planned.Description,
		Confidence:     planned.Confidence,
	}
	return s.cursors.Save(cursor)
}

// Advance records the cursor's current step as completed and moves to the
// next step in models.WorkflowSteps. Advancing past the final step is a
// no-op beyond persisting (final_confirmation has no successor).
func (s *Session) Advance(cursor *models.WorkflowCursor) error {
	idx := stepIndex(cursor.CurrentStep)
	if idx < 0 {
		return fmt.Errorf("unknown workflow step %q", cursor.CurrentStep)
	}
	cursor.CompletedSteps = append(cursor.CompletedSteps, cursor.CurrentStep)
	if idx+1 < len(models.WorkflowSteps) {
		cursor.CurrentStep = models.WorkflowSteps[idx+1]
	}
	return s.cursors.Save(cursor)
}

// Back moves the cursor to an earlier step, truncating CompletedSteps from
// that step onward — the user is redoing everything from there forward.
func (s *Session) Back(cursor *models.WorkflowCursor, target models.WorkflowStep) error {
	targetIdx := stepIndex(target)
	if targetIdx < 0 {
		return fmt.Errorf("unknown workflow step %q", target)
	}
	truncated := cursor.CompletedSteps[:0:0]
	for _, step := range cursor.CompletedSteps {
		if stepIndex(step) < targetIdx {
			truncated = append(truncated, step)
		}
	}
	cursor.CompletedSteps = truncated
	cursor.CurrentStep = target
	return s.cursors.Save(cursor)
}

// Complete marks the cursor's produced pipeline id and evicts it — a
// finished conversation has no further state worth keeping.
func (s *Session) Complete(cursor *models.WorkflowCursor, pipelineID string) error {
	cursor.PipelineID = pipelineID
	return s.cursors.Evict(cursor.SessionID, cursor.UserID)
}

// Cancel discards a session's in-progress cursor.
func (s *Session) Cancel(sessionID, userID string) error {
	return s.cursors.Evict(sessionID, userID)
}

func stepIndex(step models.WorkflowStep) int {
	for i, s := range models.WorkflowSteps {
		if s == step {
			return i
		}
	}
	return -1
}
