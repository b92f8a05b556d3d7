// Package memory provides in-process implementations of the secondary ports.
// Store keeps suites, batches, elements, jobs, results and messages behind a
// single mutex so every repository operation is atomic.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var (
	_ secondary.SuiteRepository   = (*Store)(nil)
	_ secondary.BatchRepository   = (*Store)(nil)
	_ secondary.JobRepository     = (*Store)(nil)
	_ secondary.MessageRepository = (*Store)(nil)
)

type messageEntry struct {
	msg     domain.Message
	decoded *domain.ElementData
}

type Store struct {
	mu         sync.Mutex
	seq        int64
	order      map[uuid.UUID]int64
	suites     map[uuid.UUID]*domain.Suite
	batches    map[uuid.UUID]*domain.Batch
	elements   map[uuid.UUID]*domain.Element
	promotions []*domain.PromotionRecord
	jobs       map[uuid.UUID]*domain.Job
	results    map[string]*domain.ComparisonResult
	messages   map[string]*messageEntry
}

func NewStore() *Store {
	return &Store{
		order:    make(map[uuid.UUID]int64),
		suites:   make(map[uuid.UUID]*domain.Suite),
		batches:  make(map[uuid.UUID]*domain.Batch),
		elements: make(map[uuid.UUID]*domain.Element),
		jobs:     make(map[uuid.UUID]*domain.Job),
		results:  make(map[string]*domain.ComparisonResult),
		messages: make(map[string]*messageEntry),
	}
}

func (s *Store) next(id uuid.UUID) {
	s.seq++
	s.order[id] = s.seq
}

func cloneSuite(in *domain.Suite) *domain.Suite {
	out := *in
	out.Subscribers = append([]string(nil), in.Subscribers...)
	return &out
}

func cloneBatch(in *domain.Batch) *domain.Batch {
	out := *in
	return &out
}

func cloneElement(in *domain.Element) *domain.Element {
	out := *in
	return &out
}

func cloneJob(in *domain.Job) *domain.Job {
	out := *in
	return &out
}

// Suites

func (s *Store) CreateSuite(ctx context.Context, suite *domain.Suite) (*domain.Suite, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.suites {
		if existing.TeamSlug == suite.TeamSlug && existing.Slug == suite.Slug {
			return cloneSuite(existing), false, nil
		}
	}
	stored := cloneSuite(suite)
	s.suites[stored.ID] = stored
	s.next(stored.ID)
	return cloneSuite(stored), true, nil
}

func (s *Store) GetSuite(ctx context.Context, suiteID uuid.UUID) (*domain.Suite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suite, ok := s.suites[suiteID]
	if !ok {
		return nil, nil
	}
	return cloneSuite(suite), nil
}

func (s *Store) GetSuiteBySlug(ctx context.Context, teamSlug, suiteSlug string) (*domain.Suite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, suite := range s.suites {
		if suite.TeamSlug == teamSlug && suite.Slug == suiteSlug {
			return cloneSuite(suite), nil
		}
	}
	return nil, nil
}

func (s *Store) ListSuites(ctx context.Context, teamSlug string) ([]*domain.Suite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Suite, 0)
	for _, suite := range s.suites {
		if suite.TeamSlug == teamSlug {
			out = append(out, cloneSuite(suite))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *Store) AddSubscriber(ctx context.Context, suiteID uuid.UUID, subscriber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	suite, ok := s.suites[suiteID]
	if !ok {
		return errs.SuiteNotFound
	}
	if !suite.HasSubscriber(subscriber) {
		suite.Subscribers = append(suite.Subscribers, subscriber)
	}
	return nil
}

func (s *Store) RemoveSubscriber(ctx context.Context, suiteID uuid.UUID, subscriber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	suite, ok := s.suites[suiteID]
	if !ok {
		return errs.SuiteNotFound
	}
	kept := suite.Subscribers[:0]
	for _, sub := range suite.Subscribers {
		if sub != subscriber {
			kept = append(kept, sub)
		}
	}
	suite.Subscribers = kept
	return nil
}

func (s *Store) DeleteSuite(ctx context.Context, suiteID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.batches {
		if b.SuiteID == suiteID {
			return fmt.Errorf("suite %s still has batches", suiteID)
		}
	}
	delete(s.suites, suiteID)
	kept := s.promotions[:0]
	for _, p := range s.promotions {
		if p.SuiteID != suiteID {
			kept = append(kept, p)
		}
	}
	s.promotions = kept
	return nil
}

// Batches

func (s *Store) OpenBatch(ctx context.Context, suiteID uuid.UUID, version string, now time.Time) (*domain.OpenedBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suite, ok := s.suites[suiteID]
	if !ok {
		return nil, errs.SuiteNotFound
	}
	for _, b := range s.batches {
		if b.SuiteID == suiteID && b.Version == version {
			if b.State != domain.BatchStateOpen {
				return nil, fmt.Errorf("%w: version %s is %s", errs.BatchNotOpen, version, b.State)
			}
			return &domain.OpenedBatch{Batch: cloneBatch(b)}, nil
		}
	}

	opened := &domain.OpenedBatch{Created: true}
	for _, b := range s.batches {
		if b.SuiteID == suiteID && b.State == domain.BatchStateOpen {
			at := now
			b.State = domain.BatchStateSealing
			b.SealRequestedAt = &at
			opened.Sealing = append(opened.Sealing, cloneBatch(b))
		}
	}

	batch := &domain.Batch{
		ID:          uuid.New(),
		SuiteID:     suiteID,
		Version:     version,
		State:       domain.BatchStateOpen,
		SubmittedAt: now,
	}
	if suite.BaselineBatchID != nil {
		captured := *suite.BaselineBatchID
		batch.CapturedBaselineID = &captured
	}
	s.batches[batch.ID] = batch
	s.next(batch.ID)
	opened.Batch = cloneBatch(batch)
	return opened, nil
}

func (s *Store) GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, nil
	}
	return cloneBatch(b), nil
}

func (s *Store) GetBatchByVersion(ctx context.Context, suiteID uuid.UUID, version string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.batches {
		if b.SuiteID == suiteID && b.Version == version {
			return cloneBatch(b), nil
		}
	}
	return nil, nil
}

func (s *Store) ListBatches(ctx context.Context, suiteID uuid.UUID) ([]*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Batch, 0)
	for _, b := range s.batches {
		if b.SuiteID == suiteID {
			out = append(out, cloneBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] > s.order[out[j].ID] })
	return out, nil
}

func (s *Store) ListBatchesByState(ctx context.Context, state domain.BatchState, limit int) ([]*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Batch, 0)
	for _, b := range s.batches {
		if b.State == state {
			out = append(out, cloneBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TransitionBatch(ctx context.Context, batchID uuid.UUID, from []domain.BatchState, to domain.BatchState, now time.Time) (*domain.Batch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, false, errs.BatchNotFound
	}
	matched := false
	for _, st := range from {
		if b.State == st {
			matched = true
			break
		}
	}
	if !matched {
		return cloneBatch(b), false, nil
	}
	if !b.State.CanTransition(to) {
		return nil, false, fmt.Errorf("%w: %s -> %s", errs.InvalidTransition, b.State, to)
	}

	at := now
	switch to {
	case domain.BatchStateSealing:
		b.SealRequestedAt = &at
	case domain.BatchStateSealed:
		if b.SealRequestedAt == nil {
			b.SealRequestedAt = &at
		}
		b.SealedAt = &at
	}
	b.State = to
	return cloneBatch(b), true, nil
}

func (s *Store) ArchiveBatch(ctx context.Context, batchID uuid.UUID) (*domain.Batch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, false, errs.BatchNotFound
	}
	if b.State == domain.BatchStateArchived {
		return cloneBatch(b), false, nil
	}
	if suite, ok := s.suites[b.SuiteID]; ok && suite.BaselineBatchID != nil && *suite.BaselineBatchID == batchID {
		return nil, false, fmt.Errorf("%w: batch %s is the suite baseline", errs.InvalidTransition, b.Version)
	}
	if !b.State.CanTransition(domain.BatchStateArchived) {
		return nil, false, fmt.Errorf("%w: cannot archive %s batch", errs.InvalidTransition, b.State)
	}
	b.State = domain.BatchStateArchived
	return cloneBatch(b), true, nil
}

func (s *Store) RequestPromotion(ctx context.Context, batchID uuid.UUID) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, errs.BatchNotFound
	}
	if b.State == domain.BatchStateSealing {
		b.PromoteRequested = true
	}
	return cloneBatch(b), nil
}

// applyBaseline must be called with s.mu held
func (s *Store) applyBaseline(change domain.BaselineChange) error {
	suite, ok := s.suites[change.SuiteID]
	if !ok {
		return errs.SuiteNotFound
	}
	if suite.BaselineVersion != change.ExpectedVersion {
		return fmt.Errorf("%w: suite %s baseline version %d, expected %d", errs.ConcurrentUpdate, suite.ID, suite.BaselineVersion, change.ExpectedVersion)
	}
	if change.NewBaseline != nil {
		b, ok := s.batches[*change.NewBaseline]
		if !ok {
			return errs.BatchNotFound
		}
		if b.State != domain.BatchStateSealed && b.State != domain.BatchStatePromoted {
			return fmt.Errorf("%w: cannot promote %s batch", errs.InvalidTransition, b.State)
		}
		b.State = domain.BatchStatePromoted
		b.Promoted = true
		b.PromoteRequested = false
		id := *change.NewBaseline
		suite.BaselineBatchID = &id
	} else {
		suite.BaselineBatchID = nil
	}
	suite.BaselineVersion++

	record := change.Record
	s.promotions = append(s.promotions, &record)
	return nil
}

func (s *Store) PromoteBatch(ctx context.Context, batchID uuid.UUID, change domain.BaselineChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batchID]; !ok {
		return errs.BatchNotFound
	}
	change.NewBaseline = &batchID
	return s.applyBaseline(change)
}

func (s *Store) MarkRemoved(ctx context.Context, removal domain.Removal) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[removal.BatchID]
	if !ok {
		return nil, errs.BatchNotFound
	}
	if b.State == domain.BatchStateRemoved {
		return cloneBatch(b), nil
	}

	if !removal.Force {
		for _, other := range s.batches {
			if other.ID != b.ID && other.SuiteID == b.SuiteID && other.State == domain.BatchStateOpen &&
				other.CapturedBaselineID != nil && *other.CapturedBaselineID == b.ID {
				return nil, fmt.Errorf("%w: open batch %s compares against %s", errs.BaselineMisconfiguration, other.Version, b.Version)
			}
		}
	}

	suite := s.suites[b.SuiteID]
	isBaseline := suite != nil && suite.BaselineBatchID != nil && *suite.BaselineBatchID == b.ID
	if isBaseline != (removal.Baseline != nil) {
		return nil, fmt.Errorf("%w: baseline of suite changed", errs.ConcurrentUpdate)
	}
	if removal.Baseline != nil {
		if err := s.applyBaseline(*removal.Baseline); err != nil {
			return nil, err
		}
	}

	b.State = domain.BatchStateRemoved
	return cloneBatch(b), nil
}

func (s *Store) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil
	}
	if b.State != domain.BatchStateRemoved {
		return fmt.Errorf("%w: batch %s is %s", errs.InvalidTransition, batchID, b.State)
	}
	for id, e := range s.elements {
		if e.BatchID == batchID {
			delete(s.elements, id)
		}
	}
	delete(s.batches, batchID)
	return nil
}

// Elements

func (s *Store) UpsertElement(ctx context.Context, batchID uuid.UUID, testcase string, messageHash string, now time.Time) (*domain.ElementUpsert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, errs.BatchNotFound
	}
	if b.State != domain.BatchStateOpen {
		return nil, fmt.Errorf("%w: batch %s is %s", errs.BatchNotOpen, b.Version, b.State)
	}

	for _, e := range s.elements {
		if e.BatchID == batchID && e.Testcase == testcase {
			replaced := e.MessageHash
			e.MessageHash = messageHash
			e.SubmittedAt = now
			return &domain.ElementUpsert{Element: cloneElement(e), ReplacedHash: replaced}, nil
		}
	}

	e := &domain.Element{
		ID:          uuid.New(),
		BatchID:     batchID,
		SuiteID:     b.SuiteID,
		Testcase:    testcase,
		MessageHash: messageHash,
		SubmittedAt: now,
	}
	s.elements[e.ID] = e
	s.next(e.ID)
	return &domain.ElementUpsert{Element: cloneElement(e)}, nil
}

func (s *Store) GetElement(ctx context.Context, elementID uuid.UUID) (*domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elements[elementID]
	if !ok {
		return nil, nil
	}
	return cloneElement(e), nil
}

func (s *Store) GetElementByTestcase(ctx context.Context, batchID uuid.UUID, testcase string) (*domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.elements {
		if e.BatchID == batchID && e.Testcase == testcase {
			return cloneElement(e), nil
		}
	}
	return nil, nil
}

func (s *Store) ListElements(ctx context.Context, batchID uuid.UUID) ([]*domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.elementsOf(batchID), nil
}

func (s *Store) DeleteElement(ctx context.Context, elementID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elements[elementID]
	if !ok {
		return nil
	}
	if b, ok := s.batches[e.BatchID]; ok && b.State != domain.BatchStateRemoved {
		return fmt.Errorf("%w: batch %s is %s", errs.InvalidTransition, b.Version, b.State)
	}
	delete(s.elements, elementID)
	return nil
}

func (s *Store) elementsOf(batchID uuid.UUID) []*domain.Element {
	out := make([]*domain.Element, 0)
	for _, e := range s.elements {
		if e.BatchID == batchID {
			out = append(out, cloneElement(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Testcase < out[j].Testcase })
	return out
}

func (s *Store) hasJob(e *domain.Element, statuses ...domain.JobStatus) bool {
	for _, j := range s.jobs {
		if j.SubmittedElementID != e.ID || j.SubmittedHash != e.MessageHash {
			continue
		}
		for _, st := range statuses {
			if j.Status == st {
				return true
			}
		}
	}
	return false
}

func (s *Store) CountUndrained(ctx context.Context, batchID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.elementsOf(batchID) {
		if !s.hasJob(e, domain.JobStatusSucceeded, domain.JobStatusFailed) {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListElementsWithoutJob(ctx context.Context, batchID uuid.UUID) ([]*domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Element, 0)
	for _, e := range s.elementsOf(batchID) {
		if !s.hasJob(e, domain.JobStatusQueued, domain.JobStatusRunning, domain.JobStatusSucceeded, domain.JobStatusFailed) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListPromotions(ctx context.Context, suiteID uuid.UUID) ([]*domain.PromotionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.PromotionRecord, 0)
	for i := len(s.promotions) - 1; i >= 0; i-- {
		if p := s.promotions[i]; p.SuiteID == suiteID {
			record := *p
			out = append(out, &record)
		}
	}
	return out, nil
}

// Jobs

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) (*domain.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.DedupeKey == job.DedupeKey &&
			(j.Status == domain.JobStatusQueued || j.Status == domain.JobStatusRunning || j.Status == domain.JobStatusSucceeded) {
			return cloneJob(j), false, nil
		}
	}
	stored := cloneJob(job)
	s.jobs[stored.ID] = stored
	s.next(stored.ID)
	return cloneJob(stored), true, nil
}

func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return cloneJob(j), nil
}

func (s *Store) ClaimJob(ctx context.Context, owner string, lease time.Duration, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var picked *domain.Job
	for _, j := range s.jobs {
		if j.Status != domain.JobStatusQueued || j.AvailableAt.After(now) {
			continue
		}
		if picked == nil || j.AvailableAt.Before(picked.AvailableAt) ||
			(j.AvailableAt.Equal(picked.AvailableAt) && s.order[j.ID] < s.order[picked.ID]) {
			picked = j
		}
	}
	if picked == nil {
		return nil, nil
	}

	token := uuid.New()
	started := now
	expires := now.Add(lease)
	holder := owner
	picked.Status = domain.JobStatusRunning
	picked.Attempts++
	picked.LeaseOwner = &holder
	picked.LeaseToken = &token
	picked.LeaseExpiresAt = &expires
	picked.StartedAt = &started
	return cloneJob(picked), nil
}

// leased returns the job held under lease, with s.mu held
func (s *Store) leased(lease domain.Lease) (*domain.Job, error) {
	j, ok := s.jobs[lease.JobID]
	if !ok {
		return nil, errs.JobNotFound
	}
	if j.Status == domain.JobStatusCancelled {
		return nil, errs.JobCancelled
	}
	if j.Status != domain.JobStatusRunning || j.LeaseToken == nil || *j.LeaseToken != lease.Token {
		return nil, errs.LeaseLost
	}
	return j, nil
}

func clearLease(j *domain.Job) {
	j.LeaseOwner = nil
	j.LeaseToken = nil
	j.LeaseExpiresAt = nil
}

func (s *Store) CompleteJob(ctx context.Context, lease domain.Lease, result *domain.ComparisonResult, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.leased(lease)
	if err != nil {
		return nil, err
	}
	if _, exists := s.results[result.Key]; !exists {
		stored := *result
		s.results[result.Key] = &stored
	}
	key := result.Key
	done := now
	j.Status = domain.JobStatusSucceeded
	j.ResultKey = &key
	j.CompletedAt = &done
	clearLease(j)
	return cloneJob(j), nil
}

func (s *Store) RetryJob(ctx context.Context, lease domain.Lease, lastError string, availableAt time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.leased(lease)
	if err != nil {
		return nil, err
	}
	msg := lastError
	class := string(domain.ErrorClassTransient)
	j.Status = domain.JobStatusQueued
	j.LastError = &msg
	j.ErrorClass = &class
	j.AvailableAt = availableAt
	clearLease(j)
	return cloneJob(j), nil
}

func (s *Store) FailJob(ctx context.Context, lease domain.Lease, lastError string, class domain.ErrorClass, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.leased(lease)
	if err != nil {
		return nil, err
	}
	msg := lastError
	cls := string(class)
	done := now
	j.Status = domain.JobStatusFailed
	j.LastError = &msg
	j.ErrorClass = &cls
	j.CompletedAt = &done
	clearLease(j)
	return cloneJob(j), nil
}

func (s *Store) cancelWhere(now time.Time, match func(j *domain.Job) bool) []*domain.Job {
	out := make([]*domain.Job, 0)
	for _, j := range s.jobs {
		if j.Status.Terminal() || !match(j) {
			continue
		}
		done := now
		j.Status = domain.JobStatusCancelled
		j.CompletedAt = &done
		out = append(out, cloneJob(j))
	}
	return out
}

func (s *Store) CancelBatchJobs(ctx context.Context, batchID uuid.UUID, now time.Time) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancelWhere(now, func(j *domain.Job) bool { return j.BatchID == batchID }), nil
}

func (s *Store) CancelElementJobs(ctx context.Context, elementID uuid.UUID, keepHash string, now time.Time) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancelWhere(now, func(j *domain.Job) bool {
		return j.SubmittedElementID == elementID && j.SubmittedHash != keepHash
	}), nil
}

func (s *Store) ReclaimExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]*domain.Job, 0)
	for _, j := range s.jobs {
		if j.Status == domain.JobStatusRunning && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.Before(now) {
			expired = append(expired, j)
		}
	}
	sort.Slice(expired, func(i, k int) bool { return s.order[expired[i].ID] < s.order[expired[k].ID] })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	out := make([]*domain.Job, 0, len(expired))
	for _, j := range expired {
		msg := "lease expired"
		class := string(domain.ErrorClassTransient)
		j.LastError = &msg
		j.ErrorClass = &class
		clearLease(j)
		if j.Attempts >= j.MaxAttempts {
			done := now
			j.Status = domain.JobStatusFailed
			j.CompletedAt = &done
		} else {
			j.Status = domain.JobStatusQueued
			j.AvailableAt = now
		}
		out = append(out, cloneJob(j))
	}
	return out, nil
}

func (s *Store) LatestJobForElement(ctx context.Context, elementID uuid.UUID, submittedHash string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.Job
	for _, j := range s.jobs {
		if j.SubmittedElementID != elementID || j.SubmittedHash != submittedHash || j.Status == domain.JobStatusCancelled {
			continue
		}
		if latest == nil || s.order[j.ID] > s.order[latest.ID] {
			latest = j
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneJob(latest), nil
}

func (s *Store) ListJobsByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Job, 0)
	for _, j := range s.jobs {
		if j.BatchID == batchID {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return s.order[out[i].ID] < s.order[out[k].ID] })
	return out, nil
}

func (s *Store) DeleteBatchJobs(ctx context.Context, batchID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphaned := make(map[string]struct{})
	for id, j := range s.jobs {
		if j.BatchID != batchID || !j.Status.Terminal() {
			continue
		}
		if j.ResultKey != nil {
			orphaned[*j.ResultKey] = struct{}{}
		}
		delete(s.jobs, id)
		delete(s.order, id)
	}
	for _, j := range s.jobs {
		if j.ResultKey != nil {
			delete(orphaned, *j.ResultKey)
		}
	}
	for key := range orphaned {
		delete(s.results, key)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, key string) (*domain.ComparisonResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[key]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (s *Store) GetResults(ctx context.Context, keys []string) (map[string]*domain.ComparisonResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*domain.ComparisonResult, len(keys))
	for _, key := range keys {
		if r, ok := s.results[key]; ok {
			res := *r
			out[key] = &res
		}
	}
	return out, nil
}

// Messages

func (s *Store) AcquireMessage(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.messages[hash]
	if !ok {
		return false, nil
	}
	entry.msg.RefCount++
	return true, nil
}

func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message, decoded *domain.ElementData) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.messages[msg.Hash]; ok {
		entry.msg.RefCount++
		return false, nil
	}
	stored := *msg
	stored.RefCount = 1
	s.messages[msg.Hash] = &messageEntry{msg: stored, decoded: decoded}
	return true, nil
}

func (s *Store) GetMessage(ctx context.Context, hash string) (*domain.Message, *domain.ElementData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.messages[hash]
	if !ok {
		return nil, nil, nil
	}
	msg := entry.msg
	return &msg, entry.decoded, nil
}

func (s *Store) ReleaseMessage(ctx context.Context, hash string, onZero func(ctx context.Context) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.messages[hash]
	if !ok {
		return 0, nil
	}
	if entry.msg.RefCount > 1 {
		entry.msg.RefCount--
		return entry.msg.RefCount, nil
	}
	if onZero != nil {
		if err := onZero(ctx); err != nil {
			return entry.msg.RefCount, err
		}
	}
	delete(s.messages, hash)
	return 0, nil
}

// MessageHashes lists stored message hashes, for tests and diagnostics
func (s *Store) MessageHashes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.messages))
	for h := range s.messages {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// RefCount returns the reference count of a message, 0 when absent
func (s *Store) RefCount(hash string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.messages[hash]; ok {
		return entry.msg.RefCount
	}
	return 0
}

func hasPrefix(key, prefix string) bool {
	return strings.HasPrefix(key, prefix)
}
