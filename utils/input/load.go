package input

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Load 读取控制组定义文件
// 功能：按扩展名选择XML或YAML格式，解析后逐组校验
// 参数：path-文件路径
// 返回：控制组列表；文件不可读、格式错误或校验失败时返回错误
func Load(path string) ([]*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signal file: %w", err)
	}
	var file File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		file, err = ParseXML(data)
	case ".yaml", ".yml":
		file, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported signal file %s", path)
	}
	if err != nil {
		return nil, err
	}
	return file.Resolve()
}

// ParseYAML 解析YAML格式的控制组定义
func ParseYAML(data []byte) (File, error) {
	var file File
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return File{}, fmt.Errorf("parse signal yaml: %w", err)
	}
	return file, nil
}

// Resolve 校验所有控制组，控制组ID不能重复
func (f File) Resolve() ([]*Group, error) {
	groups := make([]*Group, 0, len(f.Groups))
	seen := make(map[string]struct{})
	for _, d := range f.Groups {
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("duplicate controller group %s", d.ID)
		}
		seen[d.ID] = struct{}{}
		g, err := d.Resolve()
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	log.Infof("loaded %d controller groups", len(groups))
	return groups, nil
}
