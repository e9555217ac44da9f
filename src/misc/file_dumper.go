package misc

import (
	"os"
	"path/filepath"
	"strings"
)

// FileDumper writes a slice of lines to one output file, creating the parent
// directory on demand.
type FileDumper struct {
	file_path string
}

func (this *FileDumper) Init(file_path string) {
	this.file_path = file_path

	dir_path := filepath.Dir(file_path)
	if dir_path != "" && dir_path != "." {
		if mkdir_err := os.MkdirAll(dir_path, 0755); mkdir_err != nil {
			panic(mkdir_err)
		}
	}
}

func (this *FileDumper) FilePath() string {
	return this.file_path
}

func (this *FileDumper) WriteLines(lines []string) {
	content := strings.Join(lines, "\n")
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	if write_err := os.WriteFile(this.file_path, []byte(content), 0644); write_err != nil {
		panic(write_err)
	}
}
