package config

type WorkerKeyStruct struct {
	PersistAcquisitionsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAcquisitionsQueue: "persist_acquisitions_queue",
}
