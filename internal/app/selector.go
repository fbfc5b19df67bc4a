package app

import (
	"pgmigrator/internal/config"
	"pgmigrator/internal/selector"
	"pgmigrator/internal/storage"
)

// newSelector uses the id file when one is configured, the source query otherwise
func newSelector(cfg *config.Config, src selector.Querier, mapping storage.Mapping) (selector.Selector, error) {
	if cfg.Migration.IDsFile != "" {
		list, err := selector.NewList(cfg.IDs)
		if err != nil {
			return nil, err
		}
		return list, nil
	}

	return selector.NewQuery(src, mapping, cfg.Migration.Predicate), nil
}
