// Package questionnaire stores the assessment definitions the scheduler
// reads and imports them from protocol files.
package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"protosched/internal/protocol"
	"protosched/internal/storage"
	logx "protosched/pkg/logx"
)

var ErrNotFound = errors.New("assessment not found")

type Service struct {
	store storage.Store
	log   logx.Logger
}

func New(store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, log: log}
}

func keyFor(kind protocol.AssessmentType) (storage.Key, error) {
	switch kind {
	case protocol.TypeScheduled:
		return storage.KeyConfigAssessments, nil
	case protocol.TypeOnDemand:
		return storage.KeyConfigAssessmentsOnDemand, nil
	default:
		return "", fmt.Errorf("no assessment set for type %q", kind)
	}
}

// GetAssessments returns the stored set for kind. ALL concatenates the
// scheduled and on-demand sets. A set that was never stored is empty.
func (s *Service) GetAssessments(ctx context.Context, kind protocol.AssessmentType) ([]protocol.Assessment, error) {
	if kind == protocol.TypeAll {
		scheduled, err := s.GetAssessments(ctx, protocol.TypeScheduled)
		if err != nil {
			return nil, err
		}
		onDemand, err := s.GetAssessments(ctx, protocol.TypeOnDemand)
		if err != nil {
			return nil, err
		}
		return append(scheduled, onDemand...), nil
	}
	key, err := keyFor(kind)
	if err != nil {
		return nil, err
	}
	list, err := storage.GetOr(ctx, s.store, key, []protocol.Assessment{})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []protocol.Assessment{}
	}
	return list, nil
}

func (s *Service) GetAssessment(ctx context.Context, kind protocol.AssessmentType, name string) (protocol.Assessment, error) {
	list, err := s.GetAssessments(ctx, kind)
	if err != nil {
		return protocol.Assessment{}, err
	}
	i := slices.IndexFunc(list, func(a protocol.Assessment) bool { return a.Name == name })
	if i < 0 {
		return protocol.Assessment{}, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	return list[i], nil
}

// UpdateAssessments replaces the set for kind. ALL partitions list by type
// and replaces both sets.
func (s *Service) UpdateAssessments(ctx context.Context, kind protocol.AssessmentType, list []protocol.Assessment) error {
	if kind == protocol.TypeAll {
		scheduled, onDemand := protocol.Partition(list)
		if err := s.UpdateAssessments(ctx, protocol.TypeScheduled, scheduled); err != nil {
			return err
		}
		return s.UpdateAssessments(ctx, protocol.TypeOnDemand, onDemand)
	}
	key, err := keyFor(kind)
	if err != nil {
		return err
	}
	if list == nil {
		list = []protocol.Assessment{}
	}
	if err := storage.Set(ctx, s.store, key, list); err != nil {
		return err
	}
	if kind == protocol.TypeOnDemand {
		clinical := slices.ContainsFunc(list, func(a protocol.Assessment) bool { return a.Protocol.IsClinical() })
		if err := storage.Set(ctx, s.store, storage.KeyHasClinicalTasks, clinical); err != nil {
			return err
		}
	}
	s.log.Debug("assessments stored", logx.String("type", string(kind)), logx.Int("count", len(list)))
	return nil
}

// UpdateAssessment replaces the assessment with the same name in its
// type's set, appending it when absent.
func (s *Service) UpdateAssessment(ctx context.Context, a protocol.Assessment) error {
	kind := a.EffectiveType()
	list, err := s.GetAssessments(ctx, kind)
	if err != nil {
		return err
	}
	if i := slices.IndexFunc(list, func(x protocol.Assessment) bool { return x.Name == a.Name }); i >= 0 {
		list[i] = a
	} else {
		list = append(list, a)
	}
	return s.UpdateAssessments(ctx, kind, list)
}

func (s *Service) HasClinicalTasks(ctx context.Context) (bool, error) {
	return storage.GetOr(ctx, s.store, storage.KeyHasClinicalTasks, false)
}

// Version is the hash of the last imported protocol file, if any.
func (s *Service) Version(ctx context.Context) (string, error) {
	return storage.GetOr(ctx, s.store, storage.KeyConfigVersion, "")
}

// Reset forgets every stored assessment.
func (s *Service) Reset(ctx context.Context) error {
	for _, k := range []storage.Key{
		storage.KeyConfigVersion,
		storage.KeyConfigAssessments,
		storage.KeyConfigAssessmentsOnDemand,
		storage.KeyHasClinicalTasks,
	} {
		if err := s.store.Remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// ImportResult describes one Import call.
type ImportResult struct {
	Version   string
	Scheduled int
	OnDemand  int
	Changed   bool
}

// Import loads a protocol file and stores its assessments unless its
// content hash equals the stored CONFIG_VERSION.
func (s *Service) Import(ctx context.Context, path string) (ImportResult, error) {
	list, version, err := LoadProtocolFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	scheduled, onDemand := protocol.Partition(list)
	res := ImportResult{Version: version, Scheduled: len(scheduled), OnDemand: len(onDemand)}

	current, err := s.Version(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	if current == version {
		s.log.Debug("protocol unchanged; skipping import", logx.String("version", version))
		return res, nil
	}

	if err := s.UpdateAssessments(ctx, protocol.TypeAll, list); err != nil {
		return ImportResult{}, err
	}
	if err := storage.Set(ctx, s.store, storage.KeyConfigVersion, version); err != nil {
		return ImportResult{}, err
	}
	res.Changed = true
	s.log.Info("protocol imported",
		logx.String("path", path),
		logx.String("version", version),
		logx.Int("scheduled", res.Scheduled),
		logx.Int("on_demand", res.OnDemand),
	)
	return res, nil
}
