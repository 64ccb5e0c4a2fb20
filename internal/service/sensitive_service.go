package service

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/importcjj/sensitive"
	"go.uber.org/zap"
)

// SensitiveService 敏感词过滤服务，命中的词替换为 *
type SensitiveService struct {
	mu     sync.RWMutex
	filter *sensitive.Filter
	words  int
	logger *zap.SugaredLogger
}

// NewSensitiveService 创建空词典的过滤服务
func NewSensitiveService(logger *zap.SugaredLogger) *SensitiveService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	filter := sensitive.New()
	// 默认噪音模式会吞掉空白，评论正文需要原样保留
	filter.UpdateNoisePattern(`[^\x00-\x{10FFFF}]`)
	return &SensitiveService{filter: filter, logger: logger}
}

// LoadFile 从文件加载Base64编码的敏感词，每行一个
func (s *SensitiveService) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开敏感词文件失败: %w", err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			s.logger.Warnw("Base64解码失败，跳过该行", "line", line, "error", err)
			continue
		}
		if word := strings.TrimSpace(string(decoded)); word != "" {
			words = append(words, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取敏感词文件出错: %w", err)
	}

	s.AddWords(words...)
	s.logger.Infof("已加载 %d 个敏感词", len(words))
	return nil
}

// AddWords 添加敏感词
func (s *SensitiveService) AddWords(words ...string) {
	if len(words) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.AddWord(words...)
	s.words += len(words)
}

// Contains 文本是否包含敏感词
func (s *SensitiveService) Contains(text string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.words == 0 {
		return false
	}
	found, _ := s.filter.FindIn(text)
	return found
}

// Find 文本中出现的全部敏感词
func (s *SensitiveService) Find(text string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.words == 0 {
		return nil
	}
	return s.filter.FindAll(text)
}

// Mask 把敏感词替换为 *
func (s *SensitiveService) Mask(text string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.words == 0 {
		return text
	}
	return s.filter.Replace(text, '*')
}
