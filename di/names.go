package di

// ComponentNames defines the keys shared conveyor components are registered under.
type ComponentNames struct {
	Config       string
	Logger       string
	Conveyor     string
	QueueManager string
	Metrics      string
	Admin        string
}

// Names contains the keys used by bootstrap and the conveyor host.
var Names = ComponentNames{
	Config:       "config",
	Logger:       "logger",
	Conveyor:     "conveyor",
	QueueManager: "queue_manager",
	Metrics:      "metrics",
	Admin:        "admin",
}
