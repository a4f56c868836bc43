package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ScheduleCache stores weekly schedule views keyed by scope. Any write
// to a scope invalidates every view cached under it.
type ScheduleCache struct {
	cache *CacheService
	ttl   time.Duration
}

// NewScheduleCache wraps the generic cache for weekly views.
func NewScheduleCache(cache *CacheService, ttl time.Duration) *ScheduleCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ScheduleCache{cache: cache, ttl: ttl}
}

func scopePrefix(schoolYear string, semester models.Semester) string {
	return fmt.Sprintf("schedule:%s:%s", schoolYear, semester)
}

// GetClassWeek returns the cached weekly view for a class, if present.
func (c *ScheduleCache) GetClassWeek(ctx context.Context, classID, schoolYear string, semester models.Semester) (dto.WeeklySchedule, bool) {
	var week dto.WeeklySchedule
	hit, err := c.cache.Get(ctx, fmt.Sprintf("%s:class:%s", scopePrefix(schoolYear, semester), classID), &week)
	if err != nil || !hit {
		return nil, false
	}
	return week, true
}

// SetClassWeek caches the weekly view for a class.
func (c *ScheduleCache) SetClassWeek(ctx context.Context, classID, schoolYear string, semester models.Semester, week dto.WeeklySchedule) {
	_ = c.cache.Set(ctx, fmt.Sprintf("%s:class:%s", scopePrefix(schoolYear, semester), classID), week, c.ttl)
}

// GetTeacherWeek returns the cached weekly view for a teacher, if
// present.
func (c *ScheduleCache) GetTeacherWeek(ctx context.Context, teacherID, schoolYear string, semester models.Semester) (dto.WeeklySchedule, bool) {
	var week dto.WeeklySchedule
	hit, err := c.cache.Get(ctx, fmt.Sprintf("%s:teacher:%s", scopePrefix(schoolYear, semester), teacherID), &week)
	if err != nil || !hit {
		return nil, false
	}
	return week, true
}

// SetTeacherWeek caches the weekly view for a teacher.
func (c *ScheduleCache) SetTeacherWeek(ctx context.Context, teacherID, schoolYear string, semester models.Semester, week dto.WeeklySchedule) {
	_ = c.cache.Set(ctx, fmt.Sprintf("%s:teacher:%s", scopePrefix(schoolYear, semester), teacherID), week, c.ttl)
}

// InvalidateScope drops every cached view under a scope.
func (c *ScheduleCache) InvalidateScope(ctx context.Context, schoolYear string, semester models.Semester) {
	_ = c.cache.Invalidate(ctx, scopePrefix(schoolYear, semester)+":*")
}
