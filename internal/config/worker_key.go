package config

type WorkerKeyStruct struct {
	PersistSelectionsQueue string
	GroupStatsQueue        string
}

var WorkerKey = &WorkerKeyStruct{
	PersistSelectionsQueue: "persist_selections_queue",
	GroupStatsQueue:        "group_stats_queue",
}
