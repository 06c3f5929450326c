package scats

import (
	"fmt"
	"strings"
)

// Column 定宽字段的列范围[Start, End)，从0开始计数
type Column struct {
	Start int
	End   int
}

// Slice 截取字段并去除两端空白，行长度不足时截断到行尾
func (c Column) Slice(line string) string {
	if c.Start >= len(line) || c.Start >= c.End {
		return ""
	}
	end := min(c.End, len(line))
	return strings.TrimSpace(line[c.Start:end])
}

// Layout 周期数据文件的列布局
// 说明：不同版本的数据文件中进口道编号的列范围不同
type Layout struct {
	Name         string
	Intersection Column   // 路口编号
	Approach     Column   // 进口道编号
	Phase        Column   // 相位编号
	Green        Column   // 相位绿灯时长
	Counts       []Column // 车辆计数字段
}

var (
	// LayoutV1 进口道编号位于[9,11)
	LayoutV1 = Layout{
		Name:         "v1",
		Intersection: Column{1, 6},
		Approach:     Column{9, 11},
		Phase:        Column{16, 18},
		Green:        Column{20, 22},
		Counts:       []Column{{29, 31}, {42, 44}},
	}
	// LayoutV2 进口道编号位于[8,13)
	LayoutV2 = Layout{
		Name:         "v2",
		Intersection: Column{1, 6},
		Approach:     Column{8, 13},
		Phase:        Column{16, 18},
		Green:        Column{20, 22},
		Counts:       []Column{{29, 31}, {42, 44}},
	}

	layouts = map[string]Layout{
		LayoutV1.Name: LayoutV1,
		LayoutV2.Name: LayoutV2,
	}
)

// LayoutByName 根据版本名获取列布局，空字符串对应v1
func LayoutByName(name string) (Layout, error) {
	if name == "" {
		return LayoutV1, nil
	}
	l, ok := layouts[strings.ToLower(name)]
	if !ok {
		return Layout{}, fmt.Errorf("unknown scats layout %q", name)
	}
	return l, nil
}
