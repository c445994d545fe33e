package cfg

type Cfg struct {
	// Storage
	DBPath     string
	SocketPath string
	FeedsFile  string

	// Scheduling (seconds; zero disables the stage)
	RefreshInterval   int
	CleanupInterval   int
	SummarizeInterval int
	FilterInterval    int
	Staleness         int
	FetchDelayMs      int
	RetentionDays     int

	// AI pipeline
	AIEnabled          bool
	AIProvider         string
	OllamaHost         string
	OllamaModel        string
	CohereAPIKey       string
	CohereModel        string
	RelevanceThreshold float64
	MinContentLength   int

	// IPC
	MaxConcurrentIPC int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
