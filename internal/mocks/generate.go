package mocks

//go:generate mockery --name Cache --srcpkg github.com/aevon-lab/aggindex/internal/cache --output ./cache --outpkg cachemocks --with-expecter
