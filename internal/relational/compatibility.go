package relational

import (
	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/models"
)

// compatibility is the fixed, symmetric behavior-type compatibility table.
var compatibility = map[models.BehaviorType]map[models.BehaviorType]float64{
	models.BehaviorLeader: {
		models.BehaviorLeader:    30,
		models.BehaviorFollower:  90,
		models.BehaviorInnovator: 60,
		models.BehaviorMediator:  70,
		models.BehaviorExplorer:  50,
	},
	models.BehaviorFollower: {
		models.BehaviorLeader:    90,
		models.BehaviorFollower:  60,
		models.BehaviorInnovator: 45,
		models.BehaviorMediator:  75,
		models.BehaviorExplorer:  35,
	},
	models.BehaviorInnovator: {
		models.BehaviorLeader:    60,
		models.BehaviorFollower:  45,
		models.BehaviorInnovator: 55,
		models.BehaviorMediator:  65,
		models.BehaviorExplorer:  85,
	},
	models.BehaviorMediator: {
		models.BehaviorLeader:    70,
		models.BehaviorFollower:  75,
		models.BehaviorInnovator: 65,
		models.BehaviorMediator:  80,
		models.BehaviorExplorer:  60,
	},
	models.BehaviorExplorer: {
		models.BehaviorLeader:    50,
		models.BehaviorFollower:  35,
		models.BehaviorInnovator: 85,
		models.BehaviorMediator:  60,
		models.BehaviorExplorer:  40,
	},
}

// Compatibility returns how naturally two behavior types relate, in [0, 100].
// Unknown types are neutral.
func Compatibility(a, b models.BehaviorType) float64 {
	row, ok := compatibility[a]
	if !ok {
		return constants.NeutralCompatibility
	}
	v, ok := row[b]
	if !ok {
		return constants.NeutralCompatibility
	}
	return v
}
