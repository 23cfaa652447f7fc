package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	maxRequestLogs = 10000
	maxEventLogs   = 1000
	recentLimit    = 10
)

// EventKind ドメインイベントの種類
type EventKind string

const (
	EventChatMessage      EventKind = "chat_message"
	EventTrainingIngested EventKind = "training_ingested"
	EventModelTrained     EventKind = "model_trained"
	EventBatchGenerated   EventKind = "recommendations_generated"
	EventDecisionRecorded EventKind = "decision_recorded"
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// EventEntry チャット・学習・割引判断などのドメインイベント
type EventEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"kind"`
	Detail    string    `json:"detail"`
}

// MonitoringService はリクエストとドメインイベントをメモリ上に記録します。
type MonitoringService struct {
	mu     sync.RWMutex
	logs   []LogEntry
	events []EventEntry
	now    func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{now: time.Now}
}

// LogRequest はリクエストを記録します。古いものから捨てます。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if over := len(s.logs) - maxRequestLogs; over > 0 {
		s.logs = append([]LogEntry{}, s.logs[over:]...)
	}
}

// RecordEvent はドメインイベントを記録します。
func (s *MonitoringService) RecordEvent(kind EventKind, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, EventEntry{Timestamp: s.now(), Kind: kind, Detail: detail})
	if over := len(s.events) - maxEventLogs; over > 0 {
		s.events = append([]EventEntry{}, s.events[over:]...)
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()
		c.Next()

		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}
		// /discounts/:id/approve のようにルート単位で集計する
		if route := c.FullPath(); route != "" {
			path = route
		}

		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: s.now().Sub(start),
		})
	}
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	PeriodHours      int                      `json:"periodHours"`
	TotalRequests    int                      `json:"totalRequests"`
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
	EventCounts      map[EventKind]int        `json:"eventCounts"`
	RecentEvents     []EventEntry             `json:"recentEvents"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	var logs []LogEntry
	for _, l := range s.logs {
		if l.Timestamp.After(since) {
			logs = append(logs, l)
		}
	}

	// 時間バケット（古い順）
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[int64]int, periodHours)
	for i := 0; i < periodHours; i++ {
		t := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		bucketIndex[t.Unix()] = i
		requestsOverTime[i] = map[string]interface{}{"time": t.Format("15:00"), "requests": 0}
	}

	endpoints := make(map[string]int)
	statusCounts := map[string]int{"2xx Success": 0, "4xx Client Error": 0, "5xx Server Error": 0}
	responseTimeSum := make(map[string]time.Duration)
	for _, l := range logs {
		if i, ok := bucketIndex[l.Timestamp.Truncate(time.Hour).Unix()]; ok {
			requestsOverTime[i]["requests"] = requestsOverTime[i]["requests"].(int) + 1
		}
		endpoints[l.Path]++
		responseTimeSum[l.Path] += l.ResponseTime
		switch {
		case l.StatusCode >= 500:
			statusCounts["5xx Server Error"]++
		case l.StatusCode >= 400:
			statusCounts["4xx Client Error"]++
		case l.StatusCode >= 200 && l.StatusCode < 300:
			statusCounts["2xx Success"]++
		}
	}

	statusCodes := make([]map[string]interface{}, 0, len(statusCounts))
	for _, name := range []string{"2xx Success", "4xx Client Error", "5xx Server Error"} {
		statusCodes = append(statusCodes, map[string]interface{}{"name": name, "value": statusCounts[name]})
	}

	paths := make([]string, 0, len(responseTimeSum))
	for p := range responseTimeSum {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		avg := responseTimeSum[p].Milliseconds() / int64(endpoints[p])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": p, "responseTime": avg})
	}

	recentErrors := make([]LogEntry, 0)
	for i := len(logs) - 1; i >= 0 && len(recentErrors) < recentLimit; i-- {
		if logs[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, logs[i])
		}
	}

	eventCounts := make(map[EventKind]int)
	recentEvents := make([]EventEntry, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if !e.Timestamp.After(since) {
			break
		}
		eventCounts[e.Kind]++
		if len(recentEvents) < recentLimit {
			recentEvents = append(recentEvents, e)
		}
	}

	return DashboardData{
		PeriodHours:      periodHours,
		TotalRequests:    len(logs),
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusCodes,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
		EventCounts:      eventCounts,
		RecentEvents:     recentEvents,
	}
}
