package main

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/arachas/internal/models"
)

// ValidateFlags 验证合并后的命令行参数
func ValidateFlags(workers int, mode string, outputName string) error {
	if workers < 0 || workers > 100 {
		return fmt.Errorf("并发数必须在0-100之间 (0表示自动),当前值: %d", workers)
	}

	switch models.FetchMode(mode) {
	case models.ModeStatic, models.ModeDynamic:
	default:
		return fmt.Errorf("无效的抓取模式: %s (有效值: static, dynamic)", mode)
	}

	if outputName == "" {
		return fmt.Errorf("输出文件名不能为空")
	}
	if strings.ContainsAny(outputName, `/\`) {
		return fmt.Errorf("输出文件名不能包含路径分隔符: %s", outputName)
	}
	if outputName == "." || outputName == ".." {
		return fmt.Errorf("无效的输出文件名: %s", outputName)
	}
	return nil
}
