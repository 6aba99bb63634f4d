package tidy

import (
	"time"

	"tidy-go/internal/model"
)

// FileRecord describes one file as seen by a scan.
// Category is derived from Extension and never stored.
type FileRecord struct {
	Path          string         `json:"path" yaml:"path"`
	Name          string         `json:"name" yaml:"name"`
	Extension     string         `json:"extension" yaml:"extension"`
	Size          int64          `json:"size" yaml:"size"`
	SizeFormatted string         `json:"sizeFormatted" yaml:"sizeFormatted"`
	CreatedAt     time.Time      `json:"createdAt" yaml:"createdAt"`
	ModifiedAt    time.Time      `json:"modifiedAt" yaml:"modifiedAt"`
	IsDirectory   bool           `json:"isDirectory" yaml:"isDirectory"`
	IsHidden      bool           `json:"isHidden" yaml:"isHidden"`
	Category      model.Category `json:"category" yaml:"category"`
}

func (s *Service) newFileRecord(p *Path, classifier *Classifier) FileRecord {
	info := p.Info()
	ext := ""
	if !p.IsDir() {
		ext = ExtensionOf(p.Name())
	}
	rec := FileRecord{
		Path:        p.String(),
		Name:        p.Name(),
		Extension:   ext,
		IsDirectory: p.IsDir(),
		IsHidden:    p.IsHidden(),
	}
	if info != nil {
		rec.ModifiedAt = info.ModTime()
		rec.CreatedAt = s.fsmgr.CreatedAt(p.String(), info)
		if !p.IsDir() {
			rec.Size = info.Size()
		}
	}
	rec.SizeFormatted = FormatSize(rec.Size)
	if !p.IsDir() && classifier != nil {
		rec.Category = classifier.Classify(ext)
	}
	return rec
}
