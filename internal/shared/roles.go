package shared

// Role levels, lowest to highest. Coarse authorization thresholds across the
// platform are expressed against these.
const (
	LevelEmployee         = 1
	LevelTeamLead         = 2
	LevelManager          = 3
	LevelHRManager        = 4
	LevelManagingDirector = 5
	LevelSuperAdmin       = 6
)

// RoleLevels maps role names to their privilege level.
var RoleLevels = map[string]int{
	"employee":          LevelEmployee,
	"team_lead":         LevelTeamLead,
	"manager":           LevelManager,
	"hr_manager":        LevelHRManager,
	"managing_director": LevelManagingDirector,
	"super_admin":       LevelSuperAdmin,
}

// LevelForRole resolves a role name to its level, defaulting to employee.
func LevelForRole(role string) int {
	if level, ok := RoleLevels[role]; ok {
		return level
	}
	return LevelEmployee
}
