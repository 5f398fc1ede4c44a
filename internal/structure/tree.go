package structure

import (
	"strings"

	"repoknow/internal/model"
)

// BuildFolderTree inserts each record's path segments into a tree rooted at
// the project root. Directories are created on first reference and children
// keep insertion order.
func BuildFolderTree(rootName string, files []model.FileRecord) *model.FolderNode {
	root := &model.FolderNode{Name: rootName, Path: "", Kind: model.KindDirectory}
	dirs := map[string]*model.FolderNode{"": root}
	seen := make(map[string]bool)

	for _, f := range files {
		p := strings.Trim(f.Path, "/")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true

		segments := strings.Split(p, "/")
		parent := root
		for i, seg := range segments {
			current := strings.Join(segments[:i+1], "/")
			if i == len(segments)-1 && f.Kind != model.KindDirectory {
				parent.Children = append(parent.Children, &model.FolderNode{
					Name: seg,
					Path: current,
					Kind: model.KindFile,
				})
				break
			}

			node, ok := dirs[current]
			if !ok {
				node = &model.FolderNode{Name: seg, Path: current, Kind: model.KindDirectory}
				dirs[current] = node
				parent.Children = append(parent.Children, node)
			}
			parent = node
		}
	}

	return root
}

// CountNodes returns the number of files and directories below node,
// excluding node itself.
func CountNodes(node *model.FolderNode) (files, dirs int) {
	if node == nil {
		return 0, 0
	}
	for _, child := range node.Children {
		if child.Kind == model.KindDirectory {
			dirs++
			f, d := CountNodes(child)
			files += f
			dirs += d
		} else {
			files++
		}
	}
	return files, dirs
}
