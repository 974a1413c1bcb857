package dashboard

// Blob tier key prefixes. Each account has one blob per listing plus the rendered page.
const (
	reposPrefix     = "repos:"
	starredPrefix   = "starred:"
	prsPrefix       = "prs:"
	reviewsPrefix   = "reviews:"
	dashboardPrefix = "dashboard:"
)

func ReposKey(login string) string     { return reposPrefix + login }
func StarredKey(login string) string   { return starredPrefix + login }
func PRsKey(login string) string       { return prsPrefix + login }
func ReviewsKey(login string) string   { return reviewsPrefix + login }
func DashboardKey(login string) string { return dashboardPrefix + login }
