package core

// Job is the combat job of a player token.
type Job string

const (
	JobNone Job = ""

	// Tanks
	JobPaladin    Job = "PLD"
	JobWarrior    Job = "WAR"
	JobDarkKnight Job = "DRK"
	JobGunbreaker Job = "GNB"

	// Pure healers
	JobWhiteMage   Job = "WHM"
	JobAstrologian Job = "AST"

	// Barrier healers
	JobScholar Job = "SCH"
	JobSage    Job = "SGE"

	// Melee DPS
	JobMonk    Job = "MNK"
	JobDragoon Job = "DRG"
	JobNinja   Job = "NIN"
	JobSamurai Job = "SAM"
	JobReaper  Job = "RPR"
	JobViper   Job = "VPR"

	// Physical ranged DPS
	JobBard      Job = "BRD"
	JobMachinist Job = "MCH"
	JobDancer    Job = "DNC"

	// Magical ranged DPS
	JobBlackMage   Job = "BLM"
	JobSummoner    Job = "SMN"
	JobRedMage     Job = "RDM"
	JobPictomancer Job = "PCT"

	// Limited jobs
	JobBlueMage Job = "BLU"
)

var jobNames = map[Job]string{
	JobPaladin:     "Paladin",
	JobWarrior:     "Warrior",
	JobDarkKnight:  "Dark Knight",
	JobGunbreaker:  "Gunbreaker",
	JobWhiteMage:   "White Mage",
	JobAstrologian: "Astrologian",
	JobScholar:     "Scholar",
	JobSage:        "Sage",
	JobMonk:        "Monk",
	JobDragoon:     "Dragoon",
	JobNinja:       "Ninja",
	JobSamurai:     "Samurai",
	JobReaper:      "Reaper",
	JobViper:       "Viper",
	JobBard:        "Bard",
	JobMachinist:   "Machinist",
	JobDancer:      "Dancer",
	JobBlackMage:   "Black Mage",
	JobSummoner:    "Summoner",
	JobRedMage:     "Red Mage",
	JobPictomancer: "Pictomancer",
	JobBlueMage:    "Blue Mage",
}

// DisplayName returns the job's full name, or the abbreviation itself for
// unknown jobs.
func (j Job) DisplayName() string {
	if name, ok := jobNames[j]; ok {
		return name
	}
	return string(j)
}

// Valid reports whether the job abbreviation is known. JobNone is valid:
// non-player entities carry no job.
func (j Job) Valid() bool {
	if j == JobNone {
		return true
	}
	_, ok := jobNames[j]
	return ok
}
