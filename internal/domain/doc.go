// Package domain models Brazilian municipal reference data and the
// contract/competitor records that are joined against it.
//
// # Data Sources
//
// Population by age band comes from the IBGE SIDRA API (table 9514, 2022
// census, territorial level 6 = municipality). Each age band is requested
// separately through classification 287; one band may aggregate several
// classification codes, which are summed per municipality.
//
// Contract records come from a semicolon-delimited ticket export
// ("MunipCOn.txt"). The export is semi-structured: free-text fields may contain
// embedded newlines, so records are repaired before parsing (see
// [ParseContractExport]).
//
// Reference tables (municipalities, states, competitors) are flat CSV files.
//
// # Municipality Labels
//
// SIDRA labels municipalities as "<Name> - <UF>", e.g. "Ouro Branco - MG".
// The label is split on the first " - " into name and UF.
//
// Contract records carry a free-text organization label instead of a city
// name, e.g. "PREFEITURA MUNICIPAL DE OURO BRANCO" or
// "Câmara Municipal de Congonhas - MG". [NormalizeMunicipality] reduces these
// to a title-cased city name. The result is a join key candidate only: it is
// not guaranteed to exist in the gazetteer.
//
// # Join Keys
//
// All joins against the gazetteer use (FoldKey(name), UF), where [FoldKey]
// lower-cases and strips diacritics, so "Suaçuí" and "SUACUI" meet.
//
// # Coordinates
//
// Some gazetteer rows carry coordinates with a misplaced decimal point
// (-1993 instead of -19.93). Values outside Brazil's bounding box are divided
// by ten until they fit, at most five times. See [CorrectLatitude].
//
// # UF Codes
//
// IBGE numbers states with two digits (31 = MG, 35 = SP). [UFByCode] maps the
// code to the two-letter abbreviation.
package domain
