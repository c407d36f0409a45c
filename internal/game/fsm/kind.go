package fsm

// MainKind tags the coarse behavior modes of an actor.
type MainKind int

const (
	MainInit MainKind = iota
	MainNonCombat
	MainCombat
	MainDestruct
	MainRetreat
	MainRest
	MainDead
)

var mainKindNames = [...]string{
	MainInit:      "init",
	MainNonCombat: "non_combat",
	MainCombat:    "combat",
	MainDestruct:  "destruct",
	MainRetreat:   "retreat",
	MainRest:      "rest",
	MainDead:      "dead",
}

// String returns the snake_case name of the kind.
func (k MainKind) String() string {
	if k < 0 || int(k) >= len(mainKindNames) {
		return "unknown"
	}
	return mainKindNames[k]
}

// SubKind tags the leaf behaviors nested in main states.
type SubKind int

const (
	SubStateSelect SubKind = iota
	SubIdle
	SubWander
	SubChase
	SubLook
	SubAttack
	SubRoar
	SubStun
	SubFlee
	SubReturn
	SubWait
	SubBreak
	SubRegen
)

var subKindNames = [...]string{
	SubStateSelect: "state_select",
	SubIdle:        "idle",
	SubWander:      "wander",
	SubChase:       "chase",
	SubLook:        "look",
	SubAttack:      "attack",
	SubRoar:        "roar",
	SubStun:        "stun",
	SubFlee:        "flee",
	SubReturn:      "return",
	SubWait:        "wait",
	SubBreak:       "break",
	SubRegen:       "regen",
}

func (k SubKind) String() string {
	if k < 0 || int(k) >= len(subKindNames) {
		return "unknown"
	}
	return subKindNames[k]
}
