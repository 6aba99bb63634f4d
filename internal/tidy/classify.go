package tidy

import (
	"path/filepath"
	"strings"

	"tidy-go/internal/model"
)

var builtinExtensions = map[model.Category][]string{
	model.CategoryImages: {
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico", ".psd",
		".ai", ".tiff", ".raw", ".heic",
	},
	model.CategoryDocuments: {
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".hwp", ".txt",
		".rtf", ".odt", ".ods", ".odp", ".pages", ".numbers", ".key", ".epub",
	},
	model.CategoryVideos: {
		".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpeg",
		".mpg", ".3gp",
	},
	model.CategoryMusic: {
		".mp3", ".wav", ".flac", ".aac", ".m4a", ".wma", ".ogg", ".opus", ".aiff", ".alac",
	},
	model.CategoryArchives: {
		".zip", ".rar", ".7z", ".tar", ".gz", ".bz2", ".xz", ".lz", ".lzma", ".cab", ".iso",
	},
	model.CategoryInstallers: {
		".exe", ".msi", ".dmg", ".pkg", ".deb", ".rpm", ".app", ".apk", ".appx",
	},
	model.CategoryCode: {
		".py", ".js", ".ts", ".tsx", ".jsx", ".html", ".css", ".scss", ".sass",
		".less", ".java", ".cpp", ".c", ".h", ".hpp", ".cs", ".rs", ".go", ".rb",
		".php", ".swift", ".kt", ".scala", ".json", ".xml", ".yaml", ".yml", ".toml",
		".md", ".sh", ".bash", ".zsh", ".ps1", ".sql", ".r", ".m", ".lua", ".pl",
		".vim", ".vue", ".svelte",
	},
}

var categoryFolders = map[model.Category]string{
	model.CategoryImages:     "Images",
	model.CategoryDocuments:  "Documents",
	model.CategoryVideos:     "Videos",
	model.CategoryMusic:      "Music",
	model.CategoryArchives:   "Archives",
	model.CategoryInstallers: "Installers",
	model.CategoryCode:       "Code",
	model.CategoryOthers:     "Others",
}

// CategoryFolder returns the directory name used for category c.
func CategoryFolder(c model.Category) string {
	if name, ok := categoryFolders[c]; ok {
		return name
	}
	return categoryFolders[model.CategoryOthers]
}

// Classifier maps extensions to categories. It is immutable once built.
type Classifier struct {
	table map[string]model.Category
}

// NewClassifier builds a classifier from the built-in table overlaid with mappings.
// Mappings with an unknown category are ignored.
func NewClassifier(mappings []*model.ExtensionMapping) *Classifier {
	table := make(map[string]model.Category, 128)
	for category, exts := range builtinExtensions {
		for _, ext := range exts {
			table[ext] = category
		}
	}
	for _, m := range mappings {
		ext := NormalizeExtension(m.Extension)
		if ext == "" || !m.Category.IsValid() {
			continue
		}
		table[ext] = m.Category
	}
	return &Classifier{table: table}
}

// Classify returns the category for ext. Unknown extensions are others.
func (c *Classifier) Classify(ext string) model.Category {
	if category, ok := c.table[NormalizeExtension(ext)]; ok {
		return category
	}
	return model.CategoryOthers
}

// NormalizeExtension lower-cases ext and ensures a single leading dot.
// An empty or dot-only input yields "".
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimLeft(ext, ".")
	if ext == "" {
		return ""
	}
	return "." + ext
}

// ExtensionOf returns the normalized extension of a file name.
// Dot files without a further dot (".bashrc") have no extension.
func ExtensionOf(name string) string {
	if isHiddenName(name) && strings.Count(name, ".") == 1 {
		return ""
	}
	return NormalizeExtension(filepath.Ext(name))
}
