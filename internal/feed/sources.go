package feed

// Source describes one syndication endpoint.
type Source struct {
	URL   string `mapstructure:"url"`
	Label string `mapstructure:"label"`
}

// DefaultSources are the remote developer job boards scanned when no sources are configured.
var DefaultSources = []Source{
	{URL: "https://weworkremotely.com/categories/remote-programming-jobs.rss", Label: "WeWorkRemotely"},
	{URL: "https://remoteok.com/remote-dev-jobs.rss", Label: "RemoteOK"},
	{URL: "https://hnrss.org/whoishiring/jobs", Label: "HackerNews"},
	{URL: "https://www.workingnomads.com/jobs?category=development&rss=1", Label: "WorkingNomads"},
	{URL: "https://remotive.com/remote-jobs/feed", Label: "Remotive"},
}
