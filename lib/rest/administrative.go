package rest

import (
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/julienschmidt/httprouter"
	jsoniter "github.com/json-iterator/go"
	"github.com/uol/gobol/rip"
	"github.com/uol/logh"

	"github.com/uol/graphiteproxy/lib/constants"
)

const cFuncFreeOSMemory string = "freeOSMemory"

func (trest *REST) freeOSMemory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {

	debug.FreeOSMemory()

	if logh.InfoEnabled {
		trest.logger.Info().Str(constants.StringsFunc, cFuncFreeOSMemory).Msg("memory returned to the os")
	}

	w.WriteHeader(http.StatusOK)
}

const cFuncSetGCPercent string = "setGCPercent"

func (trest *REST) setGCPercent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {

	percentageStr := r.URL.Query().Get("percentage")
	if len(percentageStr) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	percentage, err := strconv.Atoi(percentageStr)
	if err != nil {
		if logh.WarnEnabled {
			trest.logger.Warn().Str(constants.StringsFunc, cFuncSetGCPercent).Err(err).Send()
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	old := debug.SetGCPercent(percentage)

	if logh.InfoEnabled {
		trest.logger.Info().Str(constants.StringsFunc, cFuncSetGCPercent).Msgf("gc percent changed from %d to %d", old, percentage)
	}

	rip.Success(w, http.StatusOK, []byte(strconv.Itoa(old)))
}

const cFuncReadGCStats string = "readGCStats"

func (trest *REST) readGCStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {

	gcstats := debug.GCStats{}
	debug.ReadGCStats(&gcstats)

	prettyBytes, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(gcstats, "", "  ")
	if err != nil {
		if logh.ErrorEnabled {
			trest.logger.Error().Str(constants.StringsFunc, cFuncReadGCStats).Err(err).Send()
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	rip.Success(w, http.StatusOK, prettyBytes)
}
