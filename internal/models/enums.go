package models

import (
	"fmt"
	"strings"
)

type Sort string

const (
	SortNew Sort = "NEW"
	SortTop Sort = "TOP"
	SortHot Sort = "HOT"
)

type Time string

const (
	TimeHour  Time = "HOUR"
	TimeDay   Time = "DAY"
	TimeWeek  Time = "WEEK"
	TimeMonth Time = "MONTH"
	TimeYear  Time = "YEAR"
	TimeAll   Time = "ALL"
)

type Filter string

const (
	FilterAll       Filter = "ALL"
	FilterFollowing Filter = "FOLLOWING"
)

func ParseSort(s string) (Sort, error) {
	switch v := Sort(strings.ToUpper(s)); v {
	case SortNew, SortTop, SortHot:
		return v, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

func ParseTime(s string) (Time, error) {
	switch v := Time(strings.ToUpper(s)); v {
	case TimeHour, TimeDay, TimeWeek, TimeMonth, TimeYear, TimeAll:
		return v, nil
	}
	return "", fmt.Errorf("unknown time window %q", s)
}

func ParseFilter(s string) (Filter, error) {
	switch v := Filter(strings.ToUpper(s)); v {
	case FilterAll, FilterFollowing:
		return v, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

func ParsePostType(s string) (PostType, error) {
	switch v := PostType(strings.ToUpper(s)); v {
	case PostTypeLink, PostTypeText:
		return v, nil
	}
	return "", fmt.Errorf("unknown post type %q", s)
}

// NormalizeTopic приводит имя темы к ключу: нижний регистр, пробелы заменены на "_"
func NormalizeTopic(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// NormalizeTopics нормализует список тем, убирая пустые и повторяющиеся
func NormalizeTopics(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, name := range names {
		n := NormalizeTopic(name)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
