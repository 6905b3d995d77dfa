package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Sriram-PR/site-harvester/pkg/models"
)

// Extensions of backup, temp, log, config, database, key material, VCS and IDE files.
// xml is left out so sitemap links keep being followed.
var sensitiveExtensions = map[string]bool{
	"bak": true, "backup": true, "old": true, "orig": true, "save": true, "copy": true, "bkp": true,
	"swp": true, "swo": true, "tmp": true, "temp": true,
	"log": true, "error": true, "err": true,
	"env": true, "config": true, "conf": true, "cfg": true, "ini": true, "properties": true,
	"yaml": true, "yml": true, "toml": true,
	"sql": true, "db": true, "sqlite": true, "sqlite3": true, "mdb": true, "dump": true,
	"pem": true, "key": true, "crt": true, "cer": true, "pfx": true, "p12": true, "jks": true,
	"git": true, "svn": true, "hg": true, "bzr": true,
	"ds_store": true, "idea": true, "vscode": true,
	"htpasswd": true, "htaccess": true, "gitignore": true,
}

var sensitiveNames = map[string]bool{
	".htaccess": true, ".htpasswd": true, ".env": true, ".gitignore": true, ".gitconfig": true,
	".bashrc": true, ".npmrc": true, ".pgpass": true, ".netrc": true,
	"wp-config.php": true, "config.php": true, "settings.php": true, "web.config": true,
	"secrets.txt": true, "credentials.json": true, "dockerfile": true, "compose.yml": true,
	"docker-compose.yml": true, "id_rsa": true, "id_dsa": true, "id_ecdsa": true, "id_ed25519": true,
	"known_hosts": true, "authorized_keys": true, "phpinfo.php": true,
}

var sensitiveSubstrings = []string{
	"password", "passwd", "secret", "credential", ".bak", "_history", "wp-config",
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(password|passwd|pwd|secret|credential|key)\.(txt|md|csv|json)$`),
	regexp.MustCompile(`(^|/)\.(git|svn|hg|bzr)(/|$)`),
	regexp.MustCompile(`(^|/)\.ssh/`),
	regexp.MustCompile(`~$`),
}

// SensitiveClassifier flags links that look like exposed backups, configs, keys or VCS data
type SensitiveClassifier struct {
	extensions map[string]bool
	names      map[string]bool
	substrings []string
	patterns   []*regexp.Regexp
}

func NewSensitiveClassifier() *SensitiveClassifier {
	return &SensitiveClassifier{
		extensions: sensitiveExtensions,
		names:      sensitiveNames,
		substrings: sensitiveSubstrings,
		patterns:   sensitivePatterns,
	}
}

func (c *SensitiveClassifier) Name() string              { return "sensitive" }
func (c *SensitiveClassifier) Kind() models.ArtifactKind { return models.ArtifactSensitiveFile }

// MatchLink inspects the lowercase path and its basename
func (c *SensitiveClassifier) MatchLink(u *url.URL) bool {
	if u == nil {
		return false
	}
	lowerPath, base := basename(u)
	if base != "" {
		if c.names[base] {
			return true
		}
		if i := strings.LastIndex(base, "."); i >= 0 && i < len(base)-1 {
			if c.extensions[base[i+1:]] {
				return true
			}
		}
		for _, sub := range c.substrings {
			if strings.Contains(base, sub) {
				return true
			}
		}
	}
	for _, re := range c.patterns {
		if re.MatchString(lowerPath) {
			return true
		}
	}
	return false
}
