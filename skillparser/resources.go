package skillparser

import (
	"os"
	"path/filepath"
	"strings"

	"toolhub.dev/hub"
)

// excludedResourceDirs are directory names never descended into while
// scanning for skill resources.
var excludedResourceDirs = map[string]struct{}{"node_modules": {}}

// resourceTypeByExt classifies a resource by file extension (§4.4).
var resourceTypeByExt = map[string]toolhub.ResourceType{
	".md":   toolhub.ResourceInstructions,
	".py":   toolhub.ResourceCode,
	".sh":   toolhub.ResourceCode,
	".js":   toolhub.ResourceCode,
	".ts":   toolhub.ResourceCode,
	".json": toolhub.ResourceData,
	".yaml": toolhub.ResourceData,
	".yml":  toolhub.ResourceData,
}

// ScanResources walks dirPath recursively, excluding dotfiles,
// node_modules, and manifestPath (the SKILL.md itself), and returns the
// remaining files whose extension resourceTypeByExt classifies; files with
// any other extension are skipped.
func ScanResources(dirPath, manifestPath string) ([]toolhub.SkillResource, error) {
	var resources []toolhub.SkillResource
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base := info.Name()
		if info.IsDir() {
			if base != "." && strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			if _, excluded := excludedResourceDirs[base]; excluded {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		manifestAbs, _ := filepath.Abs(manifestPath)
		if abs == manifestAbs {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		resType, known := resourceTypeByExt[ext]
		if !known {
			return nil
		}
		rel, err := filepath.Rel(dirPath, path)
		if err != nil {
			rel = path
		}
		resources = append(resources, toolhub.SkillResource{
			RelativePath: rel,
			AbsolutePath: abs,
			Extension:    ext,
			Type:         resType,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resources, nil
}
