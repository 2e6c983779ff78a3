package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestParseLevel 测试日志级别解析
func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"大写", "WARN", slog.LevelWarn},
		{"未知级别默认info", "unknown", slog.LevelInfo},
		{"空字符串默认info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLevel(tt.input)
			if got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, 期望 %v", tt.input, got, tt.expected)
			}
		})
	}
}

// TestLevelTag 测试日志级别标签
func TestLevelTag(t *testing.T) {
	tests := []struct {
		name     string
		level    slog.Level
		expected string
	}{
		{"error", slog.LevelError, "ERROR"},
		{"warn", slog.LevelWarn, "WARN "},
		{"info", slog.LevelInfo, "INFO "},
		{"debug", slog.LevelDebug, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := levelTag(tt.level)
			if got != tt.expected {
				t.Errorf("levelTag(%v) = %q, 期望 %q", tt.level, got, tt.expected)
			}
		})
	}
}

// TestFormatAttr 测试属性格式化
func TestFormatAttr(t *testing.T) {
	tests := []struct {
		name     string
		group    string
		attr     slog.Attr
		expected string
	}{
		{
			name:     "无分组",
			group:    "",
			attr:     slog.String("key", "value"),
			expected: "  key=value",
		},
		{
			name:     "有分组",
			group:    "group",
			attr:     slog.String("key", "value"),
			expected: "  group.key=value",
		},
		{
			name:     "整数值",
			group:    "",
			attr:     slog.Int("port", 8090),
			expected: "  port=8090",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatAttr(tt.group, tt.attr)
			if got != tt.expected {
				t.Errorf("formatAttr(%q, %v) = %q, 期望 %q", tt.group, tt.attr, got, tt.expected)
			}
		})
	}
}

// TestConsoleHandlerEnabled 测试 consoleHandler 的级别过滤
func TestConsoleHandlerEnabled(t *testing.T) {
	h := &consoleHandler{level: slog.LevelInfo}

	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Info 级别应该被启用")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Error 级别应该被启用")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Debug 级别不应该被启用")
	}
}

// TestConsoleHandlerHandle 测试 consoleHandler 的日志输出
func TestConsoleHandlerHandle(t *testing.T) {
	var buf bytes.Buffer
	h := &consoleHandler{w: &buf, level: slog.LevelDebug}

	record := slog.NewRecord(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), slog.LevelInfo, "test message", 0)
	record.AddAttrs(slog.String("key", "value"))

	err := h.Handle(context.Background(), record)
	if err != nil {
		t.Fatalf("Handle() 返回错误: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "12:00:00") {
		t.Errorf("输出应包含时间戳, 实际: %q", output)
	}
	if !strings.Contains(output, "INFO") {
		t.Errorf("输出应包含级别标签, 实际: %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("输出应包含消息, 实际: %q", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("输出应包含属性, 实际: %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("输出应以换行符结尾, 实际: %q", output)
	}
}

// TestConsoleHandlerWithAttrs 测试 WithAttrs 创建新 handler
func TestConsoleHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &consoleHandler{w: &buf, level: slog.LevelDebug}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "sim")})

	// 原始 handler 不应该受影响
	if len(h.attrs) != 0 {
		t.Error("原始 handler 的 attrs 不应该被修改")
	}

	// 新 handler 应该有预设属性
	record := slog.NewRecord(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), slog.LevelInfo, "test", 0)
	err := h2.Handle(context.Background(), record)
	if err != nil {
		t.Fatalf("Handle() 返回错误: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "component=sim") {
		t.Errorf("输出应包含预设属性, 实际: %q", output)
	}
}

// TestConsoleHandlerWithGroup 测试 WithGroup 创建新 handler
func TestConsoleHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := &consoleHandler{w: &buf, level: slog.LevelDebug}

	h2 := h.WithGroup("server")

	record := slog.NewRecord(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), slog.LevelInfo, "test", 0)
	record.AddAttrs(slog.String("addr", "127.0.0.1"))
	err := h2.Handle(context.Background(), record)
	if err != nil {
		t.Fatalf("Handle() 返回错误: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "server.addr=127.0.0.1") {
		t.Errorf("输出应包含分组前缀, 实际: %q", output)
	}
}

// TestConsoleHandlerWithNestedGroup 测试嵌套分组
func TestConsoleHandlerWithNestedGroup(t *testing.T) {
	var buf bytes.Buffer
	h := &consoleHandler{w: &buf, level: slog.LevelDebug}

	h2 := h.WithGroup("server").WithGroup("config")

	record := slog.NewRecord(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), slog.LevelInfo, "test", 0)
	record.AddAttrs(slog.String("port", "8090"))
	err := h2.Handle(context.Background(), record)
	if err != nil {
		t.Fatalf("Handle() 返回错误: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "server.config.port=8090") {
		t.Errorf("输出应包含嵌套分组前缀, 实际: %q", output)
	}
}

// TestNewHandlerFormats 测试不同格式选择对应的 handler
func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		format string
		check  func(h slog.Handler) bool
	}{
		{"json", func(h slog.Handler) bool { _, ok := h.(*slog.JSONHandler); return ok }},
		{"text", func(h slog.Handler) bool { _, ok := h.(*slog.TextHandler); return ok }},
		{"zap", func(h slog.Handler) bool { _, ok := h.(*zapHandler); return ok }},
		{"console", func(h slog.Handler) bool { _, ok := h.(*consoleHandler); return ok }},
		{"", func(h slog.Handler) bool { _, ok := h.(*consoleHandler); return ok }},
	}

	for _, tt := range tests {
		t.Run("format_"+tt.format, func(t *testing.T) {
			h := newHandler(Config{Level: "debug", Format: tt.format, Output: &buf})
			if !tt.check(h) {
				t.Errorf("newHandler(%q) 返回 %T", tt.format, h)
			}
		})
	}
}

// TestZapHandlerWritesJSON 测试 zap handler 输出 JSON 行
func TestZapHandlerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newZapHandler(&buf, slog.LevelInfo))

	log.With("component", "sim").WithGroup("diver").Info("surface crossed",
		"frame", 86,
		"submerged", true,
		"speed", 14.2,
		"error", errors.New("none"),
	)
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("期望 1 行输出, 实际 %d 行: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("输出不是 JSON: %v", err)
	}
	if entry["msg"] != "surface crossed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["component"] != "sim" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["diver.frame"] != float64(86) {
		t.Errorf("diver.frame = %v", entry["diver.frame"])
	}
	if entry["diver.submerged"] != true {
		t.Errorf("diver.submerged = %v", entry["diver.submerged"])
	}
	if entry["diver.error"] != "none" {
		t.Errorf("diver.error = %v", entry["diver.error"])
	}
}

// TestZapHandlerFlattensGroups 测试 slog.Group 展开为带前缀的字段
func TestZapHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newZapHandler(&buf, slog.LevelInfo)).WithGroup("sim")

	log.Info("frame",
		slog.Group("diver",
			slog.Float64("depth", 1.5),
			slog.Group("input", slog.Bool("up", true)),
		),
		slog.Group("", slog.Int("seq", 7)),
		slog.Group("empty"),
	)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("输出不是 JSON: %v (%q)", err, buf.String())
	}
	want := map[string]any{
		"sim.diver.depth":    1.5,
		"sim.diver.input.up": true,
		"sim.seq":            float64(7),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, 期望 %v", k, entry[k], v)
		}
	}
	for _, k := range []string{"sim.diver", "sim.empty", "diver"} {
		if _, ok := entry[k]; ok {
			t.Errorf("不应该输出字段 %s: %v", k, entry[k])
		}
	}
}

// TestZapHandlerEnabled 测试 zap handler 的级别过滤
func TestZapHandlerEnabled(t *testing.T) {
	h := newZapHandler(&bytes.Buffer{}, slog.LevelWarn)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Info 级别不应该被启用")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Error 级别应该被启用")
	}
}

// TestOpenOutput 测试日志文件打开
func TestOpenOutput(t *testing.T) {
	w, err := OpenOutput("")
	if err != nil {
		t.Fatalf("OpenOutput(\"\") 返回错误: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("stderr 输出的 Close 不应失败: %v", err)
	}

	path := filepath.Join(t.TempDir(), "logs", "diver.log")
	w, err = OpenOutput(path)
	if err != nil {
		t.Fatalf("OpenOutput(%q) 返回错误: %v", path, err)
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("文件内容 = %q", data)
	}
}
