package config

type SyncConfig interface {
	GetSyncPageSize() int
	GetSyncMaxPages() int
	GetSyncHourUTC() int
	GetGitHubRequestsPerSecond() float64
}

type Sync struct{}

var _ SyncConfig = Sync{}

func (Sync) GetSyncPageSize() int {
	return GetEnvInt("SYNC_PAGE_SIZE", 100)
}

// GetSyncMaxPages bounds how many pages a single listing may fetch per refresh.
func (Sync) GetSyncMaxPages() int {
	return GetEnvInt("SYNC_MAX_PAGES", 50)
}

func (Sync) GetSyncHourUTC() int {
	return GetEnvInt("SYNC_HOUR_UTC", 2)
}

func (Sync) GetGitHubRequestsPerSecond() float64 {
	return GetEnvFloat("GITHUB_REQUESTS_PER_SECOND", 10)
}
