// Package domain models GHCND (Global Historical Climatology Network - Daily)
// station and observation data.
//
// # Data Source
//
// Observations come from the NOAA Climate Data Online (CDO) v2 API at
// https://www.ncei.noaa.gov/cdo-web/api/v2, dataset id "GHCND". The API is
// token-authenticated, paginated (limit/offset), and rate limited per token.
// Stations are listed per U.S. state using a FIPS location id ("FIPS:48" is
// Texas); daily values are fetched per station and date range.
//
// # GHCND Conventions
//
// Datatype codes (the default working set):
//
//	AWND  average daily wind speed       (mean over a period)
//	PRCP  precipitation                  (sum over a period)
//	SNOW  snowfall                       (sum over a period)
//	SNWD  snow depth                     (sum over a period)
//	TAVG  average daily temperature      (mean over a period)
//	TMAX  maximum daily temperature      (mean over a period)
//	TMIN  minimum daily temperature      (mean over a period)
//
// With units=standard the API reports inches, degrees Fahrenheit, and miles
// per hour. A missing (station, date, datatype) combination is simply absent
// from the response; it is never reported as zero.
//
// Station ids carry a network prefix after "GHCND:". Ids beginning with
// "GHCND:USW" belong to the WBAN network (mostly ASOS airport stations),
// which tend to have long, complete records; these are the "priority
// network" stations the selector can prefer.
//
// # Representative Station Selection
//
// One station stands in for each state's climate record. Selection is a
// total order over the candidate set, so the same inputs always produce
// the same station:
//
//  1. Stations whose datacoverage is ~1.0 (within a small tolerance, since
//     coverage fractions are rounded upstream) form the preferred class.
//  2. If that class is empty, the stations tied for maximum coverage
//     (again within tolerance) form the class.
//  3. Ties break by longest period of record, then earliest record start,
//     then lexicographic station id.
//
// # Period Aggregation
//
// Daily values roll up to weekly (Monday-anchored) or monthly (calendar
// month) periods. Period boundaries come from the calendar, not from the
// first observed date, so a month with three observations still labels its
// row with the first of the month. Sum-type variables (PRCP, SNOW, SNWD)
// use the period sum; the rest use the arithmetic mean. A period with no
// observations for a variable has a missing cell, not a zero.
package domain
