package classify

import "regexp"

type pattern struct {
	source string
	re     *regexp.Regexp
}

func compile(sources ...string) []pattern {
	out := make([]pattern, 0, len(sources))
	for _, src := range sources {
		out = append(out, pattern{source: src, re: regexp.MustCompile("(?i)" + src)})
	}
	return out
}

var screenshotPatterns = compile(
	`screenshot`,
	`screen[-_ ]?shot`,
	`screen[-_ ]?capture`,
	`screen_\d{8}`,
	`capture[-_]?\d*`,
	`vlcsnap`,
	`snapshot`,
	`clipboard`,
	`prtscr`,
	`^snip`,
	`^greenshot[-_]`,
	`^ss[-_]?\d+`,
	`^grab[-_]?\d+`,
	`^snap[-_]?\d+`,
	`^clip[-_]?\d+`,
	`webpage`,
	`browser`,
	`^tab_`,
	`^window_`,
)

var webCachePatterns = compile(
	`cache`,
	`temp[-_]`,
	`tmp[-_]`,
	`preview`,
	`thumb`,
	`avatar`,
	`profile[-_]?pic`,
	`favicon`,
	`^icon[-_]`,
	`banner`,
	`widget`,
	`^fb[-_]`,
	`fb[-_]img`,
	`facebook[-_]`,
	`twitter[-_]`,
	`insta(gram)?[-_]`,
	`tiktok[-_]`,
	`reddit[-_]`,
	`pinterest[-_]`,
	`messenger[-_]`,
	`discord[-_]`,
	`downloads?[-_]\d+`,
	`advertisement`,
	`^ads[-_]`,
	`promo`,
	`popup`,
)

var recoveryPatterns = compile(
	`^recovered[-_]`,
	`^restored[-_]`,
	`^found\.\d+`,
	`^file\d+`,
	`^f\d{6,}\.`,
	`^untitled[-_]?\d*`,
	`^noname`,
	`^image\d+\.`,
	`^photo\d+\.`,
	`^picture\d+`,
)

var duplicatePatterns = compile(
	`^copy[-_ ]?of[-_ ]`,
	`\(\d+\)\.`,
	`^duplicate[-_]`,
	`[-_ ]copy\d*\.`,
	`~\d+\.`,
)

var unwantedKeywords = []string{
	"temp", "tmp", "cache", "backup", "copy", "duplicate",
	"untitled", "unknown", "recovered", "restored",
}

var unwantedDirectories = []string{
	"temp", "tmp", "cache", "thumbnails", "thumbs",
	"preview", "downloads", "screenshots", "captures",
	"browser", "chrome", "firefox", "safari", "edge",
	"recycle", "trash", "deleted",
}

var screenshotSoftware = []string{
	"android", "ios", "windows", "macos", "linux",
	"screenshot", "snipping", "capture", "paint",
	"photoshop", "gimp", "canva", "figma",
}

type resolution struct{ w, h int }

var deviceResolutions = []resolution{
	// desktop
	{1920, 1080}, {1366, 768}, {1280, 720}, {1024, 768},
	{1440, 900}, {1600, 900}, {1680, 1050}, {1920, 1200},
	{2560, 1440}, {2560, 1600}, {2880, 1800},
	// phones
	{414, 896}, {375, 667}, {360, 640}, {320, 568},
	{411, 731}, {393, 851}, {428, 926},
	{750, 1334}, {828, 1792}, {1125, 2436}, {1170, 2532},
	{1242, 2688}, {1284, 2778}, {1080, 2340}, {1080, 2400},
	{1440, 3200},
	// tablets
	{768, 1024}, {1024, 1366}, {820, 1180}, {1668, 2388}, {2048, 2732},
}

func matchResolution(w, h int) bool {
	for _, r := range deviceResolutions {
		if (r.w == w && r.h == h) || (r.w == h && r.h == w) {
			return true
		}
	}
	return false
}

func firstMatch(patterns []pattern, name string) (pattern, bool) {
	for _, p := range patterns {
		if p.re.MatchString(name) {
			return p, true
		}
	}
	return pattern{}, false
}
