package domain

// Rules holds the progression constants shared by the core and NFT registries.
type Rules struct {
	WorkoutsPerLevel  int
	MilestoneInterval int
}

// DefaultRules: a level every 10 workouts, a milestone NFT every 30.
func DefaultRules() Rules {
	return Rules{WorkoutsPerLevel: 10, MilestoneInterval: 30}
}

// LevelFor returns the level reached after totalWorkouts workouts. Levels start at 1.
func (r Rules) LevelFor(totalWorkouts int) int {
	if totalWorkouts <= 0 {
		return 1
	}
	return 1 + totalWorkouts/r.WorkoutsPerLevel
}

// IsMilestone reports whether totalWorkouts lands exactly on a milestone boundary.
func (r Rules) IsMilestone(totalWorkouts int) bool {
	return totalWorkouts > 0 && totalWorkouts%r.MilestoneInterval == 0
}

// NextMilestone is the first milestone strictly after totalWorkouts.
func (r Rules) NextMilestone(totalWorkouts int) int {
	if totalWorkouts < 0 {
		totalWorkouts = 0
	}
	return (totalWorkouts/r.MilestoneInterval + 1) * r.MilestoneInterval
}

// CreatureLevelFor evolves the companion once per milestone.
func (r Rules) CreatureLevelFor(totalWorkouts int) int {
	if totalWorkouts <= 0 {
		return 1
	}
	return 1 + totalWorkouts/r.MilestoneInterval
}

type achievement struct {
	name string
	met  func(s ProgressSnapshot) bool
}

var achievements = []achievement{
	{"First Sweat", func(s ProgressSnapshot) bool { return s.TotalWorkouts >= 1 }},
	{"Getting Started", func(s ProgressSnapshot) bool { return s.TotalWorkouts >= 10 }},
	{"Committed", func(s ProgressSnapshot) bool { return s.TotalWorkouts >= 30 }},
	{"Unstoppable", func(s ProgressSnapshot) bool { return s.TotalWorkouts >= 90 }},
	{"Level 5", func(s ProgressSnapshot) bool { return s.Level >= 5 }},
	{"Level 10", func(s ProgressSnapshot) bool { return s.Level >= 10 }},
	{"Week Warrior", func(s ProgressSnapshot) bool { return s.Streak >= 7 }},
	{"Streak Legend", func(s ProgressSnapshot) bool { return s.Streak >= 30 }},
}

// Achievements lists the achievements unlocked by a snapshot, in a fixed order.
func Achievements(s ProgressSnapshot) []string {
	out := []string{}
	for _, a := range achievements {
		if a.met(s) {
			out = append(out, a.name)
		}
	}
	return out
}
