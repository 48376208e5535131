package drone

var fleet = []struct {
	serial string
	model  Model
}{
	{"DRONE001", ModelLightweight},
	{"DRONE002", ModelMiddleweight},
	{"DRONE003", ModelCruiserweight},
	{"DRONE004", ModelHeavyweight},
	{"DRONE005", ModelHeavyweight},
	{"DRONE006", ModelCruiserweight},
	{"DRONE007", ModelMiddleweight},
	{"DRONE008", ModelLightweight},
	{"DRONE009", ModelCruiserweight},
	{"DRONE010", ModelMiddleweight},
}

// DefaultFleet returns the ten drones every deployment starts with, fully
// charged and idle.
func DefaultFleet() []*Drone {
	drones := make([]*Drone, 0, len(fleet))
	for _, f := range fleet {
		drones = append(drones, New(f.serial, f.model, DefaultWeightLimit[f.model], MaxBattery))
	}
	return drones
}
