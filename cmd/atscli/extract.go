package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ats-optimizer/internal/parser"
)

// extractResume 读取并提取简历文本
func extractResume(ctx context.Context) (string, string, error) {
	absPath, err := filepath.Abs(*resumeFile)
	if err != nil {
		return "", "", fmt.Errorf("无法获取文件的绝对路径: %w", err)
	}

	var opts []parser.Option
	if *tikaURL != "" {
		opts = append(opts, parser.WithTika(*tikaURL, 60*time.Second))
	}
	extractor, err := parser.NewTextExtractor(ctx, opts...)
	if err != nil {
		return "", "", fmt.Errorf("创建文本提取器失败: %w", err)
	}

	text, err := extractor.ExtractFile(ctx, absPath)
	if err != nil {
		return "", "", err
	}
	return absPath, text, nil
}

func runExtract() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startTime := time.Now()
	absPath, text, err := extractResume(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("文件: %s\n提取完成! 耗时: %v\n", absPath, time.Since(startTime))
	fmt.Printf("\n===== 提取的文本 (总计 %d 字符) =====\n", len([]rune(text)))

	runes := []rune(text)
	if *maxLen >= 0 && len(runes) > *maxLen {
		fmt.Println(string(runes[:*maxLen]) + "...(已截断，使用 --maxlen 参数显示更多)")
	} else {
		fmt.Println(text)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(text), 0644); err != nil {
			return fmt.Errorf("保存到文件失败: %w", err)
		}
		fmt.Printf("文本已保存到: %s\n", *output)
	}
	return nil
}
