package profile

import "sort"

// Strategy identifies which headship convention matched.
type Strategy uint8

const (
	StrategyNone Strategy = iota
	// StrategyDirect: department.head_ref == lecturer profile id.
	StrategyDirect
	// StrategyLegacy: department.head_ref == principal id.
	StrategyLegacy
	// StrategyDepartmentFallback: the lecturer's own department has some head.
	StrategyDepartmentFallback
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyLegacy:
		return "legacy"
	case StrategyDepartmentFallback:
		return "department_fallback"
	default:
		return "none"
	}
}

// Department is a department row. HeadRef is nil when no head is recorded.
type Department struct {
	ID      int64
	Name    string
	HeadRef *int64
}

// Ref converts d to a reference.
func (d Department) Ref() Ref {
	return Ref{ID: d.ID, Name: d.Name}
}

// Flag is a data-quality marker raised during resolution.
type Flag string

const (
	FlagLegacyHeadRef       Flag = "headship_legacy_reference"
	FlagFallbackMembership  Flag = "headship_fallback_membership"
	FlagConflictingHeadRefs Flag = "headship_conflicting_references"
	FlagMultipleHeadships   Flag = "headship_multiple_departments"
	FlagRoleNotHOD          Flag = "headship_role_not_hod"
	FlagStudentDegraded     Flag = "student_profile_degraded"
)

// Headship is the result of [ResolveHeadship].
type Headship struct {
	Department Department
	Strategy   Strategy
	IsHead     bool
	Flags      []Flag
}

// ResolveHeadship evaluates, in order, the direct, legacy and
// department-fallback strategies for lecturer profile lecturerID owned by
// principal principalID and returns the first match. Ties inside a strategy
// go to the lowest department id. The fallback strategy never sets IsHead.
func ResolveHeadship(lecturerID, principalID int64, lecturerDepartmentID *int64, table []Department) (Headship, bool) {
	byID := make(map[int64]Department, len(table))
	for _, d := range table {
		byID[d.ID] = d
	}

	var direct, legacy []Department
	for _, d := range byID {
		if d.HeadRef == nil {
			continue
		}
		switch ref := *d.HeadRef; {
		case ref == lecturerID:
			direct = append(direct, d)
		case principalID != lecturerID && ref == principalID:
			legacy = append(legacy, d)
		}
	}
	sortByID(direct)
	sortByID(legacy)

	if len(direct) > 0 {
		h := Headship{Department: direct[0], Strategy: StrategyDirect, IsHead: true}
		if len(direct) > 1 {
			h.Flags = append(h.Flags, FlagMultipleHeadships)
		}
		if len(legacy) > 0 {
			h.Flags = append(h.Flags, FlagConflictingHeadRefs)
		}
		return h, true
	}

	if len(legacy) > 0 {
		h := Headship{
			Department: legacy[0],
			Strategy:   StrategyLegacy,
			IsHead:     true,
			Flags:      []Flag{FlagLegacyHeadRef},
		}
		if len(legacy) > 1 {
			h.Flags = append(h.Flags, FlagMultipleHeadships)
		}
		return h, true
	}

	if lecturerDepartmentID != nil {
		if d, ok := byID[*lecturerDepartmentID]; ok && d.HeadRef != nil {
			return Headship{
				Department: d,
				Strategy:   StrategyDepartmentFallback,
				Flags:      []Flag{FlagFallbackMembership},
			}, true
		}
	}

	return Headship{}, false
}

func sortByID(ds []Department) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
}
