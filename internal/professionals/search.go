package professionals

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/metrics"
	"github.com/conecta-cl/marketplace/pkg/models"
	"go.uber.org/zap"
)

const (
	featuredCacheKey  = "professionals:featured"
	searchCachePrefix = "professionals:search:"
	featuredLimit     = 6
)

// Search finds verified, active professionals matching the filter. Results are
// ordered by rating then completed bookings; a free-text query additionally
// reorders by name similarity. Filtered pages are cached in Redis.
func (s *Service) Search(ctx context.Context, filter *models.SearchFilter) ([]models.Professional, models.PageInfo, error) {
	start := time.Now()
	defer func() {
		metrics.SearchLatency.Observe(time.Since(start).Seconds())
	}()

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 50 {
		filter.PageSize = s.config.SearchPageSize
	}

	cacheKey := s.searchCacheKey(filter)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var result searchResult
		if err := json.Unmarshal(cached, &result); err == nil {
			return result.Professionals, result.PageInfo, nil
		}
	}

	query := s.db.WithContext(ctx).Model(&models.Professional{}).
		Where("verification_status = ? AND is_active = ?", models.VerificationVerified, true)

	if filter.Specialty != "" {
		query = query.Where("primary_specialty = ?", filter.Specialty)
	}
	if filter.Comuna != "" {
		query = query.Where("comuna = ?", filter.Comuna)
	}
	if filter.MinRating != "" {
		minRating, err := strconv.ParseFloat(filter.MinRating, 64)
		if err != nil {
			return nil, models.PageInfo{}, errs.Invalidf("invalid min_rating: %v", err)
		}
		query = query.Where("average_rating >= ?", minRating)
	}
	if filter.Modality != "" || filter.ServiceType != "" {
		sub := s.db.Model(&models.Service{}).Select("professional_id").Where("is_active = ?", true)
		if filter.Modality != "" {
			sub = sub.Where("modality = ?", filter.Modality)
		}
		if filter.ServiceType != "" {
			sub = sub.Where("service_type = ?", filter.ServiceType)
		}
		query = query.Where("id IN (?)", sub)
	}
	if filter.Query != "" {
		pattern := "%" + strings.ToLower(filter.Query) + "%"
		query = query.Where(
			"LOWER(full_name) LIKE ? OR LOWER(bio) LIKE ? OR LOWER(primary_specialty) LIKE ? OR username_slug LIKE ?",
			pattern, pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PageInfo{}, fmt.Errorf("failed to count professionals: %w", err)
	}

	var profs []models.Professional
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.
		Order("average_rating DESC, total_bookings DESC").
		Offset(offset).Limit(filter.PageSize).
		Find(&profs).Error; err != nil {
		return nil, models.PageInfo{}, fmt.Errorf("failed to search professionals: %w", err)
	}

	if filter.Query != "" {
		rankByNameSimilarity(profs, filter.Query)
	}

	pageInfo := models.NewPageInfo(filter.Page, filter.PageSize, total)
	s.cacheSet(ctx, cacheKey, searchResult{Professionals: profs, PageInfo: pageInfo})
	return profs, pageInfo, nil
}

// Featured returns the top rated professionals for the home page
func (s *Service) Featured(ctx context.Context) ([]models.Professional, error) {
	if cached, ok := s.cacheGet(ctx, featuredCacheKey); ok {
		var profs []models.Professional
		if err := json.Unmarshal(cached, &profs); err == nil {
			return profs, nil
		}
	}

	var profs []models.Professional
	if err := s.db.WithContext(ctx).
		Where("verification_status = ? AND is_active = ? AND average_rating >= ?",
			models.VerificationVerified, true, s.config.FeaturedMinRating).
		Order("average_rating DESC, total_reviews DESC").
		Limit(featuredLimit).
		Find(&profs).Error; err != nil {
		return nil, fmt.Errorf("failed to list featured professionals: %w", err)
	}

	s.cacheSet(ctx, featuredCacheKey, profs)
	return profs, nil
}

type searchResult struct {
	Professionals []models.Professional `json:"professionals"`
	PageInfo      models.PageInfo       `json:"page_info"`
}

// rankByNameSimilarity stable-sorts a page of results by edit distance between
// the query and the professional's name, keeping the rating order for ties.
func rankByNameSimilarity(profs []models.Professional, query string) {
	q := strings.ToLower(query)
	sort.SliceStable(profs, func(i, j int) bool {
		return nameDistance(profs[i].FullName, q) < nameDistance(profs[j].FullName, q)
	})
}

// nameDistance takes the minimum distance over the name's words, so a query
// for a first name matches regardless of surname length.
func nameDistance(fullName, query string) int {
	best := levenshtein.ComputeDistance(strings.ToLower(fullName), query)
	for _, word := range strings.Fields(strings.ToLower(fullName)) {
		if d := levenshtein.ComputeDistance(word, query); d < best {
			best = d
		}
	}
	return best
}

func (s *Service) searchCacheKey(filter *models.SearchFilter) string {
	return searchCachePrefix + strings.Join([]string{
		filter.Query, filter.Specialty, filter.Comuna, filter.Modality,
		filter.ServiceType, filter.MinRating,
		strconv.Itoa(filter.Page), strconv.Itoa(filter.PageSize),
	}, "|")
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Service) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.config.CacheTTL).Err(); err != nil {
		s.logger.Debug("Failed to write search cache", zap.Error(err))
	}
}

// invalidateCaches drops the featured list and all cached search pages
func (s *Service) invalidateCaches(ctx context.Context) {
	if s.redis == nil {
		return
	}
	keys := []string{featuredCacheKey}
	iter := s.redis.Scan(ctx, 0, searchCachePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Debug("Failed to invalidate caches", zap.Error(err))
	}
}
