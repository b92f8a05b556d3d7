package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/services/batch"
	"gitlab.com/baseline-2025.net/internal/core/services/message"
	"gitlab.com/baseline-2025.net/internal/core/services/suite"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

var _ IIntakeService = (*IntakeService)(nil)

const maxNameLength = 256

type IntakeService struct {
	suites   suite.ISuiteService
	batches  batch.IBatchService
	messages message.IMessageStore
	logger   primary.Logger
}

func NewIntakeService(suites suite.ISuiteService, batches batch.IBatchService, messages message.IMessageStore, logger primary.Logger) *IntakeService {
	return &IntakeService{
		suites:   suites,
		batches:  batches,
		messages: messages,
		logger:   logger,
	}
}

func cleanName(field, raw string) (string, error) {
	name := norm.NFC.String(strings.TrimSpace(raw))
	if name == "" {
		return "", fmt.Errorf("%w: missing %s", errs.InvalidArgument, field)
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("%w: %s longer than %d bytes", errs.InvalidArgument, field, maxNameLength)
	}
	return name, nil
}

// Submit stores the payload and records it as an element of the open batch
// of the version. Suites are created on first submission. A payload that
// fails to decode leaves the pipeline untouched.
func (s *IntakeService) Submit(ctx context.Context, sub domain.Submission) (*domain.Element, error) {
	version, err := cleanName("version", sub.Version)
	if err != nil {
		return nil, err
	}
	testcase, err := cleanName("testcase", sub.Testcase)
	if err != nil {
		return nil, err
	}

	ref, err := s.messages.Store(ctx, sub.Payload)
	if err != nil {
		s.logger.Warn("Rejected submission",
			"team", sub.TeamSlug,
			"suite", sub.SuiteSlug,
			"version", version,
			"testcase", testcase,
			"error", err)
		return nil, err
	}
	if ref.Testcase != testcase {
		s.release(ctx, ref.Hash)
		s.logger.Warn("Rejected submission with mismatched testcase",
			"suite", sub.SuiteSlug,
			"testcase", testcase,
			"payloadTestcase", ref.Testcase)
		return nil, errs.Malformed("payload testcase %q does not match %q", ref.Testcase, testcase)
	}

	target, err := s.resolveSuite(ctx, sub.TeamSlug, sub.SuiteSlug)
	if err != nil {
		s.release(ctx, ref.Hash)
		return nil, err
	}

	element, err := s.batches.AddElement(ctx, target, version, testcase, ref.Hash)
	if err != nil {
		s.release(ctx, ref.Hash)
		return nil, err
	}

	s.logger.Debug("Element submitted",
		"suite", target.Slug,
		"version", version,
		"testcase", testcase,
		"reused", ref.Reused)
	return element, nil
}

func (s *IntakeService) resolveSuite(ctx context.Context, teamSlug, suiteSlug string) (*domain.Suite, error) {
	target, err := s.suites.GetSuiteBySlug(ctx, teamSlug, suiteSlug)
	if errors.Is(err, errs.SuiteNotFound) {
		return s.suites.CreateSuite(ctx, teamSlug, suiteSlug, "")
	}
	return target, err
}

func (s *IntakeService) release(ctx context.Context, hash string) {
	if err := s.messages.Release(ctx, hash); err != nil {
		s.logger.Warn("Failed to release message of rejected element", "hash", hash, "error", err)
	}
}
