package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type schedulingClassLister interface {
	ListActive(ctx context.Context) ([]models.Class, error)
}

type schedulingSubjectLister interface {
	ListActive(ctx context.Context) ([]models.Subject, error)
}

type schedulingPeriodLister interface {
	ListTeaching(ctx context.Context) ([]models.PeriodSlot, error)
}

type qualifiedTeacherLister interface {
	ListQualified(ctx context.Context) ([]models.QualifiedTeacher, error)
}

type availabilitySnapshotLister interface {
	ListAll(ctx context.Context) ([]models.TeacherAvailability, error)
}

type assignmentScopeWriter interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	DeleteScopeTx(ctx context.Context, tx *sqlx.Tx, schoolYear string, semester models.Semester) (int64, error)
	BulkCreateTx(ctx context.Context, tx *sqlx.Tx, assignments []models.ScheduleAssignment) error
}

type generationObserver interface {
	RecordGeneration(scheduled, shortfalls int)
}

type scopeCacheInvalidator interface {
	InvalidateScope(ctx context.Context, schoolYear string, semester models.Semester)
}

// SchedulingService runs the greedy timetable generator. Each run
// clears its (school year, semester) scope and repopulates it in a
// single transaction.
type SchedulingService struct {
	classes      schedulingClassLister
	subjects     schedulingSubjectLister
	periods      schedulingPeriodLister
	teachers     qualifiedTeacherLister
	availability availabilitySnapshotLister
	assignments  assignmentScopeWriter
	observer     generationObserver
	invalidator  scopeCacheInvalidator
	validator    *validator.Validate
	logger       *zap.Logger

	trackSubjects map[string]map[string]bool

	mu         sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

// SchedulingConfig governs generator behaviour. TrackSubjects maps a
// class track to the specialization subject codes its classes may take.
type SchedulingConfig struct {
	TrackSubjects map[string][]string
}

// NewSchedulingService wires generator dependencies.
func NewSchedulingService(
	classes schedulingClassLister,
	subjects schedulingSubjectLister,
	periods schedulingPeriodLister,
	teachers qualifiedTeacherLister,
	availability availabilitySnapshotLister,
	assignments assignmentScopeWriter,
	observer generationObserver,
	invalidator scopeCacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	trackSubjects := make(map[string]map[string]bool, len(cfg.TrackSubjects))
	for track, codes := range cfg.TrackSubjects {
		allowed := make(map[string]bool, len(codes))
		for _, code := range codes {
			allowed[code] = true
		}
		trackSubjects[track] = allowed
	}

	return &SchedulingService{
		classes:       classes,
		subjects:      subjects,
		periods:       periods,
		teachers:      teachers,
		availability:  availability,
		assignments:   assignments,
		observer:      observer,
		invalidator:   invalidator,
		validator:     validate,
		logger:        logger,
		trackSubjects: trackSubjects,
		scopeLocks:    make(map[string]*sync.Mutex),
	}
}

// scopeLock returns the mutex serializing generation for one scope.
// Runs for different scopes proceed concurrently.
func (s *SchedulingService) scopeLock(schoolYear string, semester models.Semester) *sync.Mutex {
	key := schoolYear + "|" + string(semester)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.scopeLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.scopeLocks[key] = lock
	}
	return lock
}

type busyKey struct {
	Day  models.Weekday
	Slot string
}

type availabilityKey struct {
	TeacherID string
	Day       models.Weekday
	Slot      string
}

// generationSnapshot holds the entity state a run operates on. It is
// loaded once per run so concurrent edits cannot skew a pass midway.
type generationSnapshot struct {
	classes     []models.Class
	subjects    []models.Subject
	slots       []models.PeriodSlot
	qualified   map[string][]models.Teacher
	unavailable map[availabilityKey]bool
}

func (s *SchedulingService) loadSnapshot(ctx context.Context) (*generationSnapshot, error) {
	classes, err := s.classes.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active classes")
	}
	subjects, err := s.subjects.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active subjects")
	}
	slots, err := s.periods.ListTeaching(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slots")
	}
	qualifiedRows, err := s.teachers.ListQualified(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualified teachers")
	}
	availabilityRows, err := s.availability.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher availability")
	}

	// Rows arrive ordered by teacher id, so each subject's candidate
	// list is already in deterministic tie-break order.
	qualified := make(map[string][]models.Teacher)
	for _, row := range qualifiedRows {
		qualified[row.SubjectID] = append(qualified[row.SubjectID], row.Teacher)
	}

	// Only explicit unavailable records block a slot. A missing record
	// means the teacher is available.
	unavailable := make(map[availabilityKey]bool)
	for _, record := range availabilityRows {
		if !record.Available {
			unavailable[availabilityKey{TeacherID: record.TeacherID, Day: record.DayOfWeek, Slot: record.PeriodSlotID}] = true
		}
	}

	return &generationSnapshot{
		classes:     classes,
		subjects:    subjects,
		slots:       slots,
		qualified:   qualified,
		unavailable: unavailable,
	}, nil
}

// eligibleSubjects filters the subject list for one class. Core and
// local-content subjects are always eligible; specialization subjects
// require the class track's allow-list to contain their code.
func (s *SchedulingService) eligibleSubjects(class models.Class, subjects []models.Subject) []models.Subject {
	allowed := s.trackSubjects[class.Track]
	eligible := make([]models.Subject, 0, len(subjects))
	for _, subject := range subjects {
		switch subject.Category {
		case models.SubjectCategoryCore, models.SubjectCategoryLocalContent:
			eligible = append(eligible, subject)
		case models.SubjectCategorySpecialization:
			if allowed[subject.Code] {
				eligible = append(eligible, subject)
			}
		}
	}
	// Heaviest subjects claim slots first. Equal hours fall back to
	// code order so reruns place identically.
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].WeeklyHours == eligible[j].WeeklyHours {
			return eligible[i].Code < eligible[j].Code
		}
		return eligible[i].WeeklyHours > eligible[j].WeeklyHours
	})
	return eligible
}

// generationState carries run-local occupancy. Load counts start at
// zero every run; prior assignments in the scope are deleted, not
// consulted.
type generationState struct {
	teacherBusy map[string]map[busyKey]bool
	classBusy   map[string]map[busyKey]bool
	loads       map[string]int
}

func newGenerationState() *generationState {
	return &generationState{
		teacherBusy: make(map[string]map[busyKey]bool),
		classBusy:   make(map[string]map[busyKey]bool),
		loads:       make(map[string]int),
	}
}

func (g *generationState) reserve(teacherID, classID string, key busyKey) {
	if g.teacherBusy[teacherID] == nil {
		g.teacherBusy[teacherID] = make(map[busyKey]bool)
	}
	g.teacherBusy[teacherID][key] = true
	if g.classBusy[classID] == nil {
		g.classBusy[classID] = make(map[busyKey]bool)
	}
	g.classBusy[classID][key] = true
	g.loads[teacherID]++
}

// hasConflict checks teacher occupancy, then class occupancy, then the
// explicit unavailability record for the triple.
func (g *generationState) hasConflict(snapshot *generationSnapshot, teacherID, classID string, key busyKey) bool {
	if g.teacherBusy[teacherID][key] {
		return true
	}
	if g.classBusy[classID][key] {
		return true
	}
	return snapshot.unavailable[availabilityKey{TeacherID: teacherID, Day: key.Day, Slot: key.Slot}]
}

// selectTeacher picks the least-loaded qualified teacher. Candidates
// arrive in id order, so the first minimum wins ties deterministically.
func (g *generationState) selectTeacher(candidates []models.Teacher) *models.Teacher {
	if len(candidates) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if g.loads[candidates[i].ID] < g.loads[candidates[best].ID] {
			best = i
		}
	}
	return &candidates[best]
}

// Generate clears the requested scope and greedily rebuilds it. The
// response reports per-class shortfalls alongside run statistics. When
// persistence fails, the error is returned together with a Success=false
// result carrying the shortfalls found before the rollback.
func (s *SchedulingService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	semester := models.Semester(req.Semester)

	lock := s.scopeLock(req.SchoolYear, semester)
	lock.Lock()
	defer lock.Unlock()

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshot.classes) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active classes to schedule")
	}
	if len(snapshot.slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active teaching period slots defined")
	}

	days := models.GenerationWeekdays()
	state := newGenerationState()
	conflicts := make([]dto.ConflictEvent, 0)
	created := make([]models.ScheduleAssignment, 0, len(snapshot.classes)*len(days)*len(snapshot.slots))

	// The theoretical total spans every active subject for every active
	// class, whether or not the pass can place it. Classes skipped for
	// lack of eligible subjects still count.
	totalSubjectHours := 0
	for _, subject := range snapshot.subjects {
		totalSubjectHours += subject.WeeklyHours
	}
	theoreticalHours := totalSubjectHours * len(snapshot.classes)

	for _, class := range snapshot.classes {
		eligible := s.eligibleSubjects(class, snapshot.subjects)
		if len(eligible) == 0 {
			conflicts = append(conflicts, dto.ConflictEvent{
				Type:      dto.ConflictNoSubjects,
				ClassID:   class.ID,
				ClassName: class.Name,
				Message:   fmt.Sprintf("no eligible subjects for class %s", class.Name),
			})
			continue
		}

		for _, subject := range eligible {
			teacher := state.selectTeacher(snapshot.qualified[subject.ID])
			if teacher == nil {
				conflicts = append(conflicts, dto.ConflictEvent{
					Type:        dto.ConflictNoTeacher,
					ClassID:     class.ID,
					ClassName:   class.Name,
					SubjectID:   subject.ID,
					SubjectName: subject.Name,
					Message:     fmt.Sprintf("no qualified teacher for subject %s", subject.Name),
				})
				continue
			}

			assigned := 0
			for _, day := range days {
				if assigned >= subject.WeeklyHours {
					break
				}
				for _, slot := range snapshot.slots {
					if assigned >= subject.WeeklyHours {
						break
					}
					key := busyKey{Day: day, Slot: slot.ID}
					if state.hasConflict(snapshot, teacher.ID, class.ID, key) {
						continue
					}
					state.reserve(teacher.ID, class.ID, key)
					created = append(created, models.ScheduleAssignment{
						ClassID:      class.ID,
						SubjectID:    subject.ID,
						TeacherID:    teacher.ID,
						DayOfWeek:    day,
						PeriodSlotID: slot.ID,
						Room:         class.Room,
						SchoolYear:   req.SchoolYear,
						Semester:     semester,
					})
					assigned++
				}
			}

			if assigned < subject.WeeklyHours {
				required := subject.WeeklyHours
				placed := assigned
				conflicts = append(conflicts, dto.ConflictEvent{
					Type:        dto.ConflictInsufficientSlots,
					ClassID:     class.ID,
					ClassName:   class.Name,
					SubjectID:   subject.ID,
					SubjectName: subject.Name,
					Message:     fmt.Sprintf("only %d of %d weekly hours placed for %s", assigned, subject.WeeklyHours, subject.Name),
					Required:    &required,
					Assigned:    &placed,
				})
			}
		}
	}

	if err := s.persistRun(ctx, req.SchoolYear, semester, created); err != nil {
		// The previous schedule is intact; hand back the shortfalls
		// gathered before the rollback so callers can still see them.
		return &dto.GenerateScheduleResult{
			Success:   false,
			Message:   fmt.Sprintf("generation for %s %s was not persisted", req.SchoolYear, semester),
			Conflicts: conflicts,
		}, err
	}

	successRate := 0.0
	if theoreticalHours > 0 {
		successRate = math.Round(float64(len(created))/float64(theoreticalHours)*100*100) / 100
	}

	if s.observer != nil {
		s.observer.RecordGeneration(len(created), len(conflicts))
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateScope(ctx, req.SchoolYear, semester)
	}

	s.logger.Info("schedule generation completed",
		zap.String("schoolYear", req.SchoolYear),
		zap.String("semester", string(semester)),
		zap.Int("scheduled", len(created)),
		zap.Int("conflicts", len(conflicts)),
		zap.Float64("successRate", successRate),
	)

	return &dto.GenerateScheduleResult{
		Success: true,
		Message: fmt.Sprintf("generated %d assignments for %s %s", len(created), req.SchoolYear, semester),
		Statistics: dto.GenerateStatistics{
			TotalScheduled:     len(created),
			ShortfallCount:     len(conflicts),
			SuccessRatePercent: successRate,
		},
		Conflicts: conflicts,
	}, nil
}

// persistRun clears the scope and inserts the new assignments in one
// transaction. A failed insert leaves the previous schedule intact.
func (s *SchedulingService) persistRun(ctx context.Context, schoolYear string, semester models.Semester, created []models.ScheduleAssignment) error {
	tx, err := s.assignments.BeginTx(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin generation transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.assignments.DeleteScopeTx(ctx, tx, schoolYear, semester); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear existing schedule")
		return err
	}
	if err = s.assignments.BulkCreateTx(ctx, tx, created); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist generated schedule")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit generated schedule")
		return err
	}
	return nil
}
