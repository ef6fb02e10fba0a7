package gitea

// pullRequestPayload is the Gitea webhook body for pull_request events.
// Gitea mirrors the GitHub shape with looser fallbacks: older versions
// populate head_branch/base_branch instead of head.ref/base.ref and may
// only carry merge_commit_sha.
type pullRequestPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		State  string `json:"state"`
		Draft  bool   `json:"draft"`
		Head   struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
		HeadBranch     string `json:"head_branch"`
		BaseBranch     string `json:"base_branch"`
		MergeCommitSHA string `json:"merge_commit_sha"`
		HTMLURL        string `json:"html_url"`
		URL            string `json:"url"`
		User           struct {
			Login    string `json:"login"`
			Username string `json:"username"`
		} `json:"user"`
	} `json:"pull_request"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender struct {
		Login    string `json:"login"`
		Username string `json:"username"`
	} `json:"sender"`
}

// pushPayload is the Gitea webhook body for push events.
type pushPayload struct {
	Ref        string `json:"ref"`
	Before     string `json:"before"`
	After      string `json:"after"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender struct {
		Login    string `json:"login"`
		Username string `json:"username"`
	} `json:"sender"`
	Pusher struct {
		Login    string `json:"login"`
		Username string `json:"username"`
	} `json:"pusher"`
	Commits []struct {
		ID        string `json:"id"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
		URL       string `json:"url"`
		Author    struct {
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"author"`
	} `json:"commits"`
}

// giteaCommit mirrors the API response of /repos/{owner}/{repo}/git/commits/{sha}.
type giteaCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	HTMLURL string `json:"html_url"`
	Files   []struct {
		Filename string `json:"filename"`
		Status   string `json:"status"`
	} `json:"files"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
}

// giteaChangedFile mirrors one entry of /repos/{owner}/{repo}/pulls/{index}/files.
type giteaChangedFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// giteaBranch mirrors /repos/{owner}/{repo}/branches/{branch}.
type giteaBranch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}
