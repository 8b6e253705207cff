// Package model defines the data structures shared by the crawler, the report
// writers and the run history database.
//
// This package contains the following main types:
//   - CrawlTask: A URL waiting to be crawled together with its link depth
//   - ImageRef / LinkRef: Absolute URLs discovered on a page
//   - DownloadOutcome: The result of one image download attempt
//   - NodeResult: What happened at one visited page
//   - Summary: The result of a whole crawl run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, report and database packages all need these types.
//
// The result types are serializable to JSON for report output and database storage.
package model
